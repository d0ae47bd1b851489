package chart

import (
	"fmt"
	"html/template"
	"io"
	"regexp"

	json "github.com/goccy/go-json"
)

const chartJSURL = "https://cdnjs.cloudflare.com/ajax/libs/Chart.js/2.9.4/Chart.min.js"

var page = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.ScriptURL}}"></script>
</head>
<body>
<canvas id="{{.ID}}"></canvas>
<script>
var config = {{.Config}};
window.onload = function () {
  var ctx = document.getElementById({{.ID}}).getContext("2d");
  window.chart = new Chart(ctx, config);
};
</script>
</body>
</html>
`))

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// RenderHTML writes a standalone page drawing cfg on a canvas named after id
func RenderHTML(w io.Writer, id string, cfg Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode chart config: %w", err)
	}

	canvasID := nonIdent.ReplaceAllString(id, "_")
	if canvasID == "" {
		canvasID = "chart"
	}

	return page.Execute(w, struct {
		Title     string
		ScriptURL string
		ID        string
		Config    template.JS
	}{
		Title:     cfg.Options.Title.Text,
		ScriptURL: chartJSURL,
		ID:        canvasID,
		Config:    template.JS(body),
	})
}
