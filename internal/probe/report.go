package probe

import (
	"io"
	"strconv"

	"github.com/okian/pulseboard/internal/domain/types"
	"github.com/olekukonko/tablewriter"
)

// RenderTable writes one row per series with its latest readings.
func RenderTable(w io.Writer, view types.Dashboard) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Title", "Samples", "Duration", "Rate"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range view.Series {
		table.Append([]string{
			s.Metric,
			s.Title,
			strconv.FormatUint(s.Samples, 10),
			last(s.Duration),
			last(s.Rate),
		})
	}
	table.SetFooter([]string{view.Name, "", strconv.Itoa(len(view.Series)) + " series", "", ""})
	table.Render()
}

func last(points []types.Point) string {
	if len(points) == 0 {
		return "-"
	}
	return strconv.FormatFloat(points[len(points)-1].Value, 'f', 3, 64)
}
