package dashboard

import (
	"bytes"
	"net/http"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/gkchatty/gkchatty-local/internal/diag"
	"github.com/gkchatty/gkchatty-local/internal/logger"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// handleReport returns the latest persisted diagnostic report rendered
// to an HTML fragment the page injects.
func (d *Dashboard) handleReport(w http.ResponseWriter, r *http.Request) {
	path, content, err := diag.LatestReport(d.deps.ReportsDir)
	if err != nil {
		wlog := logger.FromContext(r.Context())
		wlog.Warn().Err(err).Msg("loading latest diagnostic report")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if content == "" {
		writeJSON(w, http.StatusOK, map[string]string{"html": "", "path": ""})
		return
	}

	var rendered bytes.Buffer
	if err := markdown.Convert([]byte(content), &rendered); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"html": rendered.String(),
		"path": path,
	})
}
