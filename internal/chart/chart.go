// Package chart renders reports as chart.js bar charts.
package chart

import (
	"time"

	"github.com/soltixdb/statseries/internal/models"
)

// Config is a chart.js 2.x chart configuration
type Config struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label           string  `json:"label"`
	BackgroundColor string  `json:"backgroundColor"`
	BorderColor     string  `json:"borderColor"`
	Data            []int64 `json:"data"`
	Fill            bool    `json:"fill"`
}

type Options struct {
	Responsive bool        `json:"responsive"`
	Title      Title       `json:"title"`
	Tooltips   Interaction `json:"tooltips"`
	Hover      Interaction `json:"hover"`
	Scales     Scales      `json:"scales"`
}

type Title struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type Interaction struct {
	Mode      string `json:"mode"`
	Intersect bool   `json:"intersect"`
}

type Scales struct {
	XAxes []Axis `json:"xAxes"`
	YAxes []Axis `json:"yAxes"`
}

type Axis struct {
	Stacked    bool       `json:"stacked"`
	Display    bool       `json:"display"`
	ScaleLabel ScaleLabel `json:"scaleLabel"`
}

type ScaleLabel struct {
	Display     bool   `json:"display"`
	LabelString string `json:"labelString"`
}

// Bar builds a stacked bar chart with one dataset per report series
func Bar(report *models.ReportResponse, xLabel, yLabel string) Config {
	datasets := make([]Dataset, len(report.Series))
	for i, s := range report.Series {
		color := Turbo(i, len(report.Series))
		datasets[i] = Dataset{
			Label:           s.Label,
			BackgroundColor: color,
			BorderColor:     color,
			Data:            s.Values,
		}
	}

	title := report.Title
	if title == "" {
		title = report.Name
	}

	return Config{
		Type: "bar",
		Data: Data{Labels: report.Labels, Datasets: datasets},
		Options: Options{
			Responsive: true,
			Title:      Title{Display: true, Text: title},
			Tooltips:   Interaction{Mode: "index", Intersect: false},
			Hover:      Interaction{Mode: "nearest", Intersect: true},
			Scales: Scales{
				XAxes: []Axis{{Stacked: true, Display: true, ScaleLabel: ScaleLabel{Display: xLabel != "", LabelString: xLabel}}},
				YAxes: []Axis{{Stacked: true, Display: true, ScaleLabel: ScaleLabel{Display: yLabel != "", LabelString: yLabel}}},
			},
		},
	}
}

// DateLabels formats axis labels. Month-start dates render as YYYY-MM; if
// any date falls mid-month all render as YYYY-MM-DD so labels stay unique.
func DateLabels(dates []time.Time) []string {
	layout := "2006-01"
	for _, d := range dates {
		if d.Day() != 1 {
			layout = time.DateOnly
			break
		}
	}

	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format(layout)
	}
	return labels
}
