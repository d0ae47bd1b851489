// Package scheduler periodically recomputes the configured reports and
// publishes them as events.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"

	"github.com/soltixdb/statseries/internal/archive"
	"github.com/soltixdb/statseries/internal/chart"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/soltixdb/statseries/internal/queue"
	"github.com/soltixdb/statseries/internal/services"
	"github.com/soltixdb/statseries/internal/utils"
)

// Runner computes reports by name
type Runner interface {
	Names() []string
	Run(ctx context.Context, name string) (*models.ReportResponse, error)
}

// Stats summarizes one refresh
type Stats struct {
	Published int
	Failed    int
	Duration  time.Duration
}

// Refresher recomputes every report on a cron schedule and publishes each
// result to "{prefix}.{report}". A failing report is logged, published as an
// error event, and does not stop the others.
type Refresher struct {
	config    config.SchedulerConfig
	prefix    string
	logger    *logging.Logger
	runner    Runner
	publisher queue.Publisher
	cron      *cron.Cron
	now       func() time.Time

	archive       archive.Store
	archivePrefix string
	metrics       *metrics.Metrics

	mu      sync.Mutex // serializes refreshes
	started bool
}

// Option configures a Refresher
type Option func(*Refresher)

// WithArchive stores the chart page of every successful report under
// prefix, as a timestamped snapshot and as "latest".
func WithArchive(store archive.Store, prefix string) Option {
	return func(r *Refresher) {
		r.archive = store
		r.archivePrefix = prefix
	}
}

// WithMetrics counts published events
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Refresher) { r.metrics = m }
}

// NewRefresher creates a Refresher. The cron spec is validated here so a bad
// schedule fails at startup.
func NewRefresher(cfg config.SchedulerConfig, prefix string, logger *logging.Logger, runner Runner, publisher queue.Publisher, opts ...Option) (*Refresher, error) {
	r := &Refresher{
		config:    cfg,
		prefix:    prefix,
		logger:    logger,
		runner:    runner,
		publisher: publisher,
		cron:      cron.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if !cfg.Enabled {
		return r, nil
	}
	if _, err := r.cron.AddFunc(cfg.Cron, r.scheduled); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", cfg.Cron, err)
	}
	return r, nil
}

// Start starts the cron loop and, when configured, refreshes once in the
// background right away.
func (r *Refresher) Start(ctx context.Context) {
	if !r.config.Enabled {
		r.logger.Info("Report scheduler is disabled")
		return
	}

	r.logger.Info("Starting report scheduler",
		"cron", r.config.Cron,
		"run_on_start", r.config.RunOnStart,
		"reports", len(r.runner.Names()))

	r.cron.Start()
	r.started = true

	if r.config.RunOnStart {
		go func() {
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.Warn("Initial report refresh incomplete", "error", err)
			}
		}()
	}
}

// Stop stops scheduling and waits for a running refresh to finish
func (r *Refresher) Stop() {
	if !r.started {
		return
	}
	<-r.cron.Stop().Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("Report scheduler stopped")
}

func (r *Refresher) scheduled() {
	if _, err := r.Refresh(context.Background()); err != nil {
		r.logger.Warn("Scheduled report refresh incomplete", "error", err)
	}
}

// Refresh runs every report once. The returned error joins the failures of
// individual reports; Stats counts both outcomes.
func (r *Refresher) Refresh(ctx context.Context) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		stats Stats
		errs  []error
	)
	for _, name := range r.runner.Names() {
		if err := r.refreshOne(ctx, name); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("report %s: %w", name, err))
			continue
		}
		stats.Published++
	}
	stats.Duration = time.Since(start)

	r.logger.Info("Report refresh finished",
		"published", stats.Published,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, errors.Join(errs...)
}

func (r *Refresher) refreshOne(ctx context.Context, name string) error {
	event := models.ReportEvent{Report: name}

	report, runErr := r.runner.Run(ctx, name)
	if runErr != nil {
		r.logger.Error("Report refresh failed", "report", name, "error", runErr)
		event.Error = errorDetail(runErr)
		event.GeneratedAt = r.now().UTC()
	} else {
		event.Payload = report
		event.GeneratedAt = report.GeneratedAt
		r.archiveChart(ctx, report)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
	defer cancel()

	subject := queue.Subject(r.prefix, name)
	err = r.publisher.Publish(pubCtx, subject, data)
	r.metrics.ObservePublish(name, err)
	if err != nil {
		r.logger.Error("Failed to publish report event", "report", name, "subject", subject, "error", err)
		return errors.Join(runErr, err)
	}

	if runErr != nil {
		return runErr
	}
	r.logger.Debug("Published report event", "report", name, "subject", subject, "bytes", len(data))
	return nil
}

func (r *Refresher) archiveChart(ctx context.Context, report *models.ReportResponse) {
	if r.archive == nil {
		return
	}

	var page bytes.Buffer
	if err := chart.RenderHTML(&page, report.Name, chart.Bar(report, "", "")); err != nil {
		r.logger.Warn("Failed to render chart for archive", "report", report.Name, "error", err)
		return
	}

	snapshot, latest := archive.ChartKeys(r.archivePrefix, report.Name, report.GeneratedAt)
	for _, key := range []string{snapshot, latest} {
		if err := r.archive.Put(ctx, key, page.Bytes(), "text/html; charset=utf-8"); err != nil {
			r.logger.Warn("Failed to archive chart", "report", report.Name, "key", key, "error", err)
			return
		}
	}
	r.logger.Debug("Archived chart", "report", report.Name, "key", snapshot)
}

func errorDetail(err error) *models.ErrorDetail {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return &models.ErrorDetail{Code: svcErr.Code, Message: svcErr.Message, Details: svcErr.Details}
	}
	return &models.ErrorDetail{Code: services.CodeInternalError, Message: err.Error()}
}
