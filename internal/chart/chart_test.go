package chart

import (
	"bytes"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report() *models.ReportResponse {
	return &models.ReportResponse{
		Name:   "electric-cars",
		Title:  "Elbiler",
		Labels: []string{"2020-01", "2020-02"},
		Series: []models.SeriesResponse{
			{Label: "El", Values: []int64{5, 13}},
			{Label: "Mål", Values: []int64{0, 100}},
		},
	}
}

func TestBar(t *testing.T) {
	cfg := Bar(report(), "", "antal")

	assert.Equal(t, "bar", cfg.Type)
	assert.Equal(t, []string{"2020-01", "2020-02"}, cfg.Data.Labels)
	require.Len(t, cfg.Data.Datasets, 2)
	assert.Equal(t, "El", cfg.Data.Datasets[0].Label)
	assert.Equal(t, []int64{0, 100}, cfg.Data.Datasets[1].Data)
	assert.NotEqual(t, cfg.Data.Datasets[0].BackgroundColor, cfg.Data.Datasets[1].BackgroundColor)
	assert.Equal(t, "Elbiler", cfg.Options.Title.Text)
	assert.True(t, cfg.Options.Scales.XAxes[0].Stacked)
	assert.False(t, cfg.Options.Scales.XAxes[0].ScaleLabel.Display)
	assert.True(t, cfg.Options.Scales.YAxes[0].ScaleLabel.Display)

	body, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"xAxes"`)
	assert.Contains(t, string(body), `"backgroundColor"`)
}

func TestDateLabels(t *testing.T) {
	months := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, []string{"2020-01", "2020-02"}, DateLabels(months))

	weeks := append(months, time.Date(2020, 2, 9, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2020-01-01", "2020-02-01", "2020-02-09"}, DateLabels(weeks))

	assert.Empty(t, DateLabels(nil))
}

func TestTurbo(t *testing.T) {
	// dark blue at 0, dark red at 1
	assert.Equal(t, "#23171b", TurboAt(0))
	assert.Equal(t, Turbo(0, 1), TurboAt(0))
	assert.Equal(t, TurboAt(1), Turbo(4, 5))
	assert.Equal(t, TurboAt(0), TurboAt(-3))

	for i := 0; i < 10; i++ {
		c := Turbo(i, 10)
		assert.Len(t, c, 7)
		assert.True(t, strings.HasPrefix(c, "#"))
	}
}

func TestRenderHTML(t *testing.T) {
	r := report()
	r.Series[0].Label = "</script><script>alert(1)</script>"

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "electric cars!", Bar(r, "", "")))

	html := buf.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, `<canvas id="electric_cars_">`)
	assert.Contains(t, html, "Chart.min.js")
	assert.Contains(t, html, "<title>Elbiler</title>")
	assert.NotContains(t, html, "</script><script>alert(1)")
}
