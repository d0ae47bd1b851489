package services

import (
	"context"
	"fmt"
	"time"

	"github.com/soltixdb/statseries/internal/chart"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/soltixdb/statseries/internal/series"
)

// Fetcher loads a table restricted by a selector as a series group
type Fetcher interface {
	Fetch(ctx context.Context, table string, selector map[string][]string) (series.Group, error)
}

// Step transforms a group
type Step func(series.Group) (series.Group, error)

// ReportService runs configured and ad-hoc report pipelines
type ReportService struct {
	logger  *logging.Logger
	fetcher Fetcher
	reports []config.ReportConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

// ServiceOption configures a ReportService
type ServiceOption func(*ReportService)

// WithMetrics records run counts and latency per report
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *ReportService) { s.metrics = m }
}

// NewReportService creates a new ReportService
func NewReportService(logger *logging.Logger, fetcher Fetcher, reports []config.ReportConfig, opts ...ServiceOption) *ReportService {
	s := &ReportService{
		logger:  logger,
		fetcher: fetcher,
		reports: reports,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the configured reports
func (s *ReportService) List() []models.ReportSummary {
	out := make([]models.ReportSummary, len(s.reports))
	for i, r := range s.reports {
		out[i] = models.ReportSummary{Name: r.Name, Title: r.Title, Table: r.Table, Steps: len(r.Steps)}
	}
	return out
}

// Names returns the configured report names in order
func (s *ReportService) Names() []string {
	names := make([]string, len(s.reports))
	for i, r := range s.reports {
		names[i] = r.Name
	}
	return names
}

func (s *ReportService) lookup(name string) (config.ReportConfig, error) {
	for _, r := range s.reports {
		if r.Name == name {
			return r, nil
		}
	}
	return config.ReportConfig{}, NewServiceErrorWithDetails(CodeReportNotFound,
		fmt.Sprintf("report %q not found", name), map[string]interface{}{"report": name})
}

// Run computes a configured report
func (s *ReportService) Run(ctx context.Context, name string) (*models.ReportResponse, error) {
	def, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, def)
}

// RunAdHoc validates and computes a report definition supplied by a caller
func (s *ReportService) RunAdHoc(ctx context.Context, def config.ReportConfig) (*models.ReportResponse, error) {
	if def.Name == "" {
		def.Name = "adhoc"
	}
	if err := def.Validate(); err != nil {
		return nil, NewServiceError(CodeInvalidReport, err.Error())
	}
	return s.run(ctx, def)
}

// Chart computes a configured report and lays it out as a bar chart
func (s *ReportService) Chart(ctx context.Context, name string) (*chart.Config, error) {
	resp, err := s.Run(ctx, name)
	if err != nil {
		return nil, err
	}
	cfg := chart.Bar(resp, "", "")
	return &cfg, nil
}

func (s *ReportService) run(ctx context.Context, def config.ReportConfig) (resp *models.ReportResponse, err error) {
	ctx = logging.WithReport(ctx, def.Name)
	log := s.logger.WithContext(ctx)
	start := time.Now()
	defer func() { s.metrics.ObserveReport(def.Name, time.Since(start), err) }()

	steps, err := Pipeline(def.Steps)
	if err != nil {
		return nil, NewServiceError(CodeInvalidReport, err.Error())
	}

	group, err := s.fetcher.Fetch(ctx, def.Table, def.SelectorMap())
	if err != nil {
		log.Error("Failed to fetch report table", "table", def.Table, "error", err)
		return nil, wrapError(err, map[string]interface{}{"report": def.Name, "table": def.Table})
	}

	for i, step := range steps {
		group, err = step(group)
		if err != nil {
			log.Warn("Report step failed", "step", i, "op", def.Steps[i].Op, "error", err)
			return nil, wrapError(err, map[string]interface{}{"report": def.Name, "step": i, "op": def.Steps[i].Op})
		}
	}

	resp = Render(def, group, s.now())
	log.Info("Report computed",
		"series", len(resp.Series),
		"labels", len(resp.Labels),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// Pipeline turns step definitions into group operators
func Pipeline(defs []config.StepConfig) ([]Step, error) {
	steps := make([]Step, 0, len(defs))
	for i := range defs {
		step, err := newStep(defs[i])
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func newStep(def config.StepConfig) (Step, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	switch def.Op {
	case config.StepAccumulate:
		return series.Group.Accumulate, nil

	case config.StepSliceFrom:
		date, _ := config.ParseDate(def.Date)
		return mapping(func(s series.TimeSeries) series.TimeSeries { return s.SliceFrom(date) }), nil

	case config.StepBucket:
		wd, _ := config.ParseWeekday(def.Weekday)
		boundary := series.Weekday(wd)
		return mapping(func(s series.TimeSeries) series.TimeSeries {
			return s.BucketReduce(boundary, series.Delta)
		}), nil

	case config.StepScale:
		return mapping(func(s series.TimeSeries) series.TimeSeries { return s.Scale(def.Factor) }), nil

	case config.StepSum:
		return func(g series.Group) (series.Group, error) { return g.Sum(def.Title), nil }, nil

	case config.StepNormalize:
		return func(g series.Group) (series.Group, error) { return g.Normalize(def.Reference) }, nil

	case config.StepGoal:
		target, _ := config.ParseDate(def.TargetDate)
		return func(g series.Group) (series.Group, error) {
			return g.FutureGoal(def.Title, target, def.TargetValue, def.GoalStep())
		}, nil
	}

	return nil, fmt.Errorf("unknown op %q", def.Op)
}

func mapping(fn func(series.TimeSeries) series.TimeSeries) Step {
	return func(g series.Group) (series.Group, error) { return g.MapSeries(fn), nil }
}

// Render shapes a group as a report response. Every series' values are
// aligned to the group's domain dates.
func Render(def config.ReportConfig, g series.Group, generatedAt time.Time) *models.ReportResponse {
	dates := g.DomainDates()

	resp := &models.ReportResponse{
		Name:        def.Name,
		Title:       def.Title,
		Table:       def.Table,
		Updated:     g.Updated(),
		GeneratedAt: generatedAt.UTC(),
		Labels:      chart.DateLabels(dates),
		Series:      make([]models.SeriesResponse, 0, g.Len()),
	}

	for _, s := range g.All() {
		values := make([]int64, len(dates))
		for i, d := range dates {
			values[i], _ = s.Get(d)
		}

		points := make([]models.PointResponse, 0, s.Len())
		for d, v := range s.All() {
			points = append(points, models.PointResponse{Date: d.Format(time.DateOnly), Value: v})
		}

		resp.Series = append(resp.Series, models.SeriesResponse{
			Label:  s.Tags().Join(","),
			Tags:   s.Tags().Strings(),
			Values: values,
			Points: points,
		})
	}
	return resp
}
