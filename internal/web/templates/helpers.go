package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/emiliopalmerini/splitlab/internal/util"
)

var statusFilters = []string{"", "draft", "running", "stopped", "completed"}

func filterLabel(status string) string {
	if status == "" {
		return "all"
	}
	return status
}

func filterURL(status string) templ.SafeURL {
	return templ.URL("/experiments?status=" + status)
}

func statusClass(status string) string {
	return "status status-" + status
}

func experimentURL(id string) templ.SafeURL {
	return templ.URL("/experiments/" + id)
}

func formatEffect(e *float64) string {
	if e == nil {
		return "-"
	}
	return util.FormatSignedPercent(*e)
}

func formatPValue(p *float64) string {
	if p == nil {
		return "-"
	}
	return util.FormatPValue(*p)
}

func formatDays(d int) string {
	if d == 0 {
		return "open-ended"
	}
	return strconv.Itoa(d) + " days"
}
