package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/series"
	"github.com/soltixdb/statseries/internal/statbank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var updated = time.Date(2020, time.April, 2, 8, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	group    series.Group
	err      error
	table    string
	selector map[string][]string
}

func (f *fakeFetcher) Fetch(_ context.Context, table string, selector map[string][]string) (series.Group, error) {
	f.table, f.selector = table, selector
	return f.group, f.err
}

func month(y int, m time.Month) time.Time { return series.Date(y, m, 1) }

func carsGroup() series.Group {
	return series.NewGroup(updated,
		series.New(series.NewTagSet("El", "Privat"),
			series.Point{Date: month(2020, time.January), Value: 10},
			series.Point{Date: month(2020, time.February), Value: 20},
		),
		series.New(series.NewTagSet("El", "Erhverv"),
			series.Point{Date: month(2020, time.February), Value: 5},
		),
	)
}

func newService(f *fakeFetcher, reports ...config.ReportConfig) *ReportService {
	svc := NewReportService(logging.Nop(), f, reports)
	svc.now = func() time.Time { return updated.Add(time.Hour) }
	return svc
}

func TestReportService_Run(t *testing.T) {
	f := &fakeFetcher{group: carsGroup()}
	svc := newService(f, config.ReportConfig{
		Name:     "electric-cars",
		Title:    "Elbiler",
		Table:    "BIL51",
		Selector: []config.SelectorConfig{{Variable: "DRIV", Values: []string{"El"}}},
		Steps: []config.StepConfig{
			{Op: config.StepAccumulate},
			{Op: config.StepGoal, Title: "Mål", TargetDate: "2020-05-01", TargetValue: 135},
		},
	})

	resp, err := svc.Run(context.Background(), "electric-cars")
	require.NoError(t, err)

	assert.Equal(t, "BIL51", f.table)
	assert.Equal(t, map[string][]string{"DRIV": {"El"}}, f.selector)

	assert.Equal(t, "Elbiler", resp.Title)
	assert.Equal(t, updated, resp.Updated)
	assert.Equal(t, updated.Add(time.Hour), resp.GeneratedAt)
	assert.Equal(t, []string{"2020-01", "2020-02", "2020-03", "2020-04", "2020-05"}, resp.Labels)

	require.Len(t, resp.Series, 3)
	assert.Equal(t, "El,Privat", resp.Series[0].Label)
	assert.Equal(t, []int64{10, 30, 0, 0, 0}, resp.Series[0].Values)
	assert.Equal(t, "El,Erhverv", resp.Series[1].Label)
	assert.Equal(t, []int64{0, 5, 0, 0, 0}, resp.Series[1].Values)

	// total 35 at Feb 1, 135 at May 1 (90 days), linear in between
	goal := resp.Series[2]
	assert.Equal(t, "Mål", goal.Label)
	assert.Equal(t, []int64{0, 0, 35 + 100*29/90, 35 + 100*60/90, 135}, goal.Values)
	assert.Equal(t, "2020-05-01", goal.Points[len(goal.Points)-1].Date)
}

func TestReportService_RunSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []config.StepConfig
		check func(t *testing.T, labels []string, values map[string][]int64)
	}{
		{
			name:  "sum",
			steps: []config.StepConfig{{Op: config.StepSum, Title: "I alt"}},
			check: func(t *testing.T, labels []string, values map[string][]int64) {
				assert.Equal(t, map[string][]int64{"I alt": {10, 25}}, values)
			},
		},
		{
			name:  "scale then slice",
			steps: []config.StepConfig{{Op: config.StepScale, Factor: 2}, {Op: config.StepSliceFrom, Date: "2020-01-15"}},
			check: func(t *testing.T, labels []string, values map[string][]int64) {
				assert.Equal(t, []string{"2020-02"}, labels)
				assert.Equal(t, []int64{40}, values["El,Privat"])
				assert.Equal(t, []int64{10}, values["El,Erhverv"])
			},
		},
		{
			name:  "normalize",
			steps: []config.StepConfig{{Op: config.StepNormalize, Reference: "Privat"}},
			check: func(t *testing.T, labels []string, values map[string][]int64) {
				assert.Equal(t, map[string][]int64{"El,Erhverv": {0, 25}}, values)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&fakeFetcher{group: carsGroup()})
			resp, err := svc.RunAdHoc(context.Background(), config.ReportConfig{Table: "BIL51", Steps: tt.steps})
			require.NoError(t, err)
			assert.Equal(t, "adhoc", resp.Name)

			values := make(map[string][]int64)
			for _, s := range resp.Series {
				values[s.Label] = s.Values
			}
			tt.check(t, resp.Labels, values)
		})
	}
}

func TestReportService_Errors(t *testing.T) {
	tests := []struct {
		name string
		run  func(svc *ReportService) error
		f    *fakeFetcher
		code string
	}{
		{
			name: "unknown report",
			f:    &fakeFetcher{group: carsGroup()},
			run: func(svc *ReportService) error {
				_, err := svc.Run(context.Background(), "missing")
				return err
			},
			code: CodeReportNotFound,
		},
		{
			name: "invalid ad-hoc definition",
			f:    &fakeFetcher{group: carsGroup()},
			run: func(svc *ReportService) error {
				_, err := svc.RunAdHoc(context.Background(), config.ReportConfig{Table: "BIL51",
					Steps: []config.StepConfig{{Op: "smooth"}}})
				return err
			},
			code: CodeInvalidReport,
		},
		{
			name: "upstream failure",
			f:    &fakeFetcher{err: statbank.ErrUpstream},
			run: func(svc *ReportService) error {
				_, err := svc.RunAdHoc(context.Background(), config.ReportConfig{Table: "BIL51"})
				return err
			},
			code: CodeUpstreamError,
		},
		{
			name: "missing normalize reference",
			f:    &fakeFetcher{group: carsGroup()},
			run: func(svc *ReportService) error {
				_, err := svc.RunAdHoc(context.Background(), config.ReportConfig{Table: "BIL51",
					Steps: []config.StepConfig{{Op: config.StepNormalize, Reference: "I alt"}}})
				return err
			},
			code: CodePipelineError,
		},
		{
			name: "goal target in the past",
			f:    &fakeFetcher{group: carsGroup()},
			run: func(svc *ReportService) error {
				_, err := svc.RunAdHoc(context.Background(), config.ReportConfig{Table: "BIL51",
					Steps: []config.StepConfig{{Op: config.StepGoal, Title: "Mål", TargetDate: "2019-01-01", TargetValue: 1}}})
				return err
			},
			code: CodePipelineError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newService(tt.f, config.ReportConfig{Name: "known", Table: "BIL51"}))
			var svcErr *ServiceError
			require.True(t, errors.As(err, &svcErr), "expected ServiceError, got %v", err)
			assert.Equal(t, tt.code, svcErr.Code)
		})
	}
}

func TestReportService_ListAndChart(t *testing.T) {
	svc := newService(&fakeFetcher{group: carsGroup()},
		config.ReportConfig{Name: "a", Title: "A", Table: "BIL51", Steps: []config.StepConfig{{Op: config.StepAccumulate}}},
		config.ReportConfig{Name: "b", Table: "BIL52"},
	)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.Equal(t, 1, list[0].Steps)
	assert.Equal(t, []string{"a", "b"}, svc.Names())

	cfg, err := svc.Chart(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "bar", cfg.Type)
	assert.Len(t, cfg.Data.Datasets, 2)
	assert.Equal(t, "A", cfg.Options.Title.Text)
}

func TestPipeline_RejectsInvalidStep(t *testing.T) {
	_, err := Pipeline([]config.StepConfig{{Op: config.StepAccumulate}, {Op: config.StepScale}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[1]")
}

func TestRender_EmptyGroup(t *testing.T) {
	resp := Render(config.ReportConfig{Name: "x"}, series.NewGroup(updated), updated)
	assert.Empty(t, resp.Labels)
	assert.Empty(t, resp.Series)
}

func TestReportService_RecordsRunMetrics(t *testing.T) {
	m := metrics.New()
	f := &fakeFetcher{group: carsGroup()}
	svc := NewReportService(logging.Nop(), f, []config.ReportConfig{{Name: "cars", Table: "BIL51"}}, WithMetrics(m))

	_, err := svc.Run(context.Background(), "cars")
	require.NoError(t, err)

	f.err = statbank.ErrUpstream
	_, err = svc.Run(context.Background(), "cars")
	require.Error(t, err)

	expected := `
# HELP statseries_report_runs_total Report pipeline runs by report and outcome.
# TYPE statseries_report_runs_total counter
statseries_report_runs_total{outcome="error",report="cars"} 1
statseries_report_runs_total{outcome="success",report="cars"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "statseries_report_runs_total"))
}
