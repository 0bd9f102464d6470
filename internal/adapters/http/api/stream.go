package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/pulseboard/internal/domain/types"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
	"github.com/samber/lo"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Stream message types. Dashboard events use their own kind.
const (
	MessageInit = "init"
)

// StreamMessage is one frame sent over the live stream.
type StreamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// InitPayload is the first frame of every stream.
type InitPayload struct {
	Dashboards []types.Dashboard `json:"dashboards"`
}

// StreamHandler pushes dashboard events to browsers over a websocket.
type StreamHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: log,
	}
}

// HandleStream handles GET /ws. The optional ?dashboard=name restricts the
// stream to one dashboard. The first frame is an init message with the
// current views; every later frame is one dashboard event.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("dashboard")
	if filter != "" {
		if _, ok := h.deps.DashboardView(filter); !ok {
			writeError(w, http.StatusNotFound, "not_found", ErrDashboardNotFound)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.deps.Subscribe(ctx)
	if err != nil {
		h.logger.Warn(ctx, "stream subscription refused", logger.Error(err))
		h.close(conn, websocket.CloseTryAgainLater, fmt.Errorf("%w: %w", ErrStreamUnavailable, err).Error())
		return
	}
	metrics.AddWebsocketClients(1)
	defer metrics.AddWebsocketClients(-1)

	views := h.deps.Views()
	if filter != "" {
		views = lo.Filter(views, func(v types.Dashboard, _ int) bool { return v.Name == filter })
	}
	if err := h.write(conn, StreamMessage{Type: MessageInit, Payload: InitPayload{Dashboards: views}}); err != nil {
		return
	}

	go h.readLoop(conn, cancel)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				h.close(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			if filter != "" && e.Dashboard != filter {
				continue
			}
			if err := h.write(conn, StreamMessage{Type: string(e.Kind), Payload: e}); err != nil {
				h.logger.Debug(ctx, "stream write failed", logger.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames and ends the stream when the client goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(context.Background(), "websocket read error", logger.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *StreamHandler) close(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
