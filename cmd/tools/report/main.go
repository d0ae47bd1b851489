package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/soltixdb/statseries/internal/cache"
	"github.com/soltixdb/statseries/internal/chart"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/soltixdb/statseries/internal/queue"
	"github.com/soltixdb/statseries/internal/services"
	"github.com/soltixdb/statseries/internal/statbank"
	"github.com/soltixdb/statseries/internal/utils"
)

// selectorFlag collects repeated -select VARIABLE=v1,v2 flags
type selectorFlag []config.SelectorConfig

func (s *selectorFlag) String() string {
	parts := make([]string, len(*s))
	for i, sel := range *s {
		parts[i] = sel.Variable + "=" + strings.Join(sel.Values, ",")
	}
	return strings.Join(parts, " ")
}

func (s *selectorFlag) Set(v string) error {
	variable, values, ok := strings.Cut(v, "=")
	if !ok || variable == "" || values == "" {
		return fmt.Errorf("expected VARIABLE=value[,value...], got %q", v)
	}
	*s = append(*s, config.SelectorConfig{Variable: variable, Values: strings.Split(values, ",")})
	return nil
}

// options holds the parsed command line
type options struct {
	reportName string
	table      string
	title      string
	goal       string
	output     string
	format     string
	cachePath  string
	selectors  selectorFlag
}

// errUsage marks errors caused by inconsistent flags
var errUsage = errors.New("usage")

// newCache opens the payload cache; tests replace it
var newCache = cache.New

func main() {
	var opts options

	configPath := flag.String("config", "", "Path to configuration file")
	flag.StringVar(&opts.reportName, "report", "", "Configured report to compute")
	flag.StringVar(&opts.table, "table", "", "Table to compute an ad-hoc report for (instead of -report)")
	flag.StringVar(&opts.title, "title", "", "Title of the ad-hoc report")
	flag.StringVar(&opts.goal, "goal", "", "Ad-hoc goal as YYYY-MM-DD:VALUE")
	flag.StringVar(&opts.output, "out", "chart.html", "Output file")
	flag.StringVar(&opts.format, "format", "", "Output format: html, json or csv (default from -out extension)")
	flag.StringVar(&opts.cachePath, "cache", "", "SQLite file caching upstream payloads between runs (overrides cache config)")
	watch := flag.String("watch", "", "Print events published for this report until interrupted")
	flag.Var(&opts.selectors, "select", "Selection VARIABLE=value[,value...] for -table (repeatable)")
	flag.Parse()

	cfg := config.LoadOrDefault("")
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	var err error
	if *watch != "" {
		err = watchReport(cfg, *watch)
	} else {
		err = run(cfg, opts)
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// run computes one report and writes it to opts.output
func run(cfg *config.Config, opts options) error {
	def, err := reportDefinition(cfg, opts.reportName, opts.table, opts.title, opts.goal, opts.selectors)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	format := opts.format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(opts.output), ".")
	}
	if !supportedFormat(format) {
		return fmt.Errorf("%w: unsupported format %q (supported: html, json, csv)", errUsage, format)
	}

	if opts.cachePath != "" {
		cfg.Cache.Type = string(utils.CacheTypeSQLite)
		cfg.Cache.Path = opts.cachePath
	}
	payloads, err := newCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = payloads.Close() }()

	client := statbank.New(cfg.Statbank, statbank.WithCache(payloads, cfg.Cache.KeyPrefix))
	svc := services.NewReportService(logging.NewDevelopment(), client, cfg.Reports)

	ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultRequestTimeout)
	defer cancel()

	report, err := svc.RunAdHoc(ctx, def)
	if err != nil {
		return fmt.Errorf("computing report %s: %w", def.Name, err)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := write(f, format, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", opts.output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", opts.output, err)
	}

	fmt.Printf("Wrote %s (%d series, %d dates)\n", opts.output, len(report.Series), len(report.Labels))
	return nil
}

func supportedFormat(format string) bool {
	switch format {
	case "html", "htm", "json", "csv":
		return true
	}
	return false
}

// reportDefinition picks a configured report or builds the ad-hoc
// accumulate-then-goal report from flags
func reportDefinition(cfg *config.Config, name, table, title, goal string, selectors selectorFlag) (config.ReportConfig, error) {
	switch {
	case name != "" && table != "":
		return config.ReportConfig{}, errors.New("-report and -table are mutually exclusive")
	case name != "":
		def, ok := cfg.Report(name)
		if !ok {
			return config.ReportConfig{}, fmt.Errorf("report %q is not configured", name)
		}
		return def, nil
	case table == "":
		return config.ReportConfig{}, errors.New("one of -report or -table is required")
	}

	def := config.ReportConfig{
		Name:     strings.ToLower(table),
		Title:    title,
		Table:    table,
		Selector: selectors,
		Steps:    []config.StepConfig{{Op: config.StepAccumulate}},
	}
	if def.Title == "" {
		def.Title = table
	}

	if goal != "" {
		date, value, ok := strings.Cut(goal, ":")
		if !ok {
			return config.ReportConfig{}, fmt.Errorf("-goal must be YYYY-MM-DD:VALUE, got %q", goal)
		}
		target, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return config.ReportConfig{}, fmt.Errorf("-goal value: %w", err)
		}
		def.Steps = append(def.Steps, config.StepConfig{
			Op:          config.StepGoal,
			Title:       "Goal",
			TargetDate:  date,
			TargetValue: target,
		})
	}

	return def, def.Validate()
}

func write(w io.Writer, format string, report *models.ReportResponse) error {
	switch format {
	case "html", "htm":
		return chart.RenderHTML(w, report.Name, chart.Bar(report, "", ""))
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		return writeCSV(w, report)
	default:
		return fmt.Errorf("unsupported format %q (supported: html, json, csv)", format)
	}
}

// writeCSV writes one row per date and one column per series
func writeCSV(w io.Writer, report *models.ReportResponse) error {
	cw := csv.NewWriter(w)

	header := []string{"date"}
	for _, s := range report.Series {
		header = append(header, s.Label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, label := range report.Labels {
		row := []string{label}
		for _, s := range report.Series {
			row = append(row, strconv.FormatInt(s.Values[i], 10))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func watchReport(cfg *config.Config, name string) error {
	sub, err := queue.NewSubscriber(cfg.Queue)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	subject := queue.Subject(cfg.Queue.SubjectPrefix, name)
	err = sub.Subscribe(subject, func(data []byte) error {
		var event models.ReportEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		if event.Error != nil {
			fmt.Printf("%s %s failed: %s %s\n", event.GeneratedAt.Format("2006-01-02 15:04:05"), event.Report, event.Error.Code, event.Error.Message)
			return nil
		}
		fmt.Printf("%s %s: %d series, %d dates\n", event.GeneratedAt.Format("2006-01-02 15:04:05"), event.Report, len(event.Payload.Series), len(event.Payload.Labels))
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("Watching %s (queue %s), Ctrl-C to stop\n", subject, cfg.Queue.Type)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return sub.Unsubscribe(subject)
}
