// Package site serves the embedded dashboard page.
package site

import (
	"context"
	"net/http"
)

// Middleware decorates the static file handler, e.g. with compression.
type Middleware func(http.Handler) http.Handler

// Register attaches the dashboard page and its assets at / on mux.
func Register(_ context.Context, mux *http.ServeMux, middleware ...Middleware) {
	if mux == nil {
		panic("mux is nil")
	}

	var h http.Handler = NewRootHandler()
	for _, m := range middleware {
		h = m(h)
	}
	mux.Handle("/", h)
}

// RootHandler serves the embedded static files.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// ServeHTTP handles GET / and the page assets.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	h.files.ServeHTTP(w, r)
}
