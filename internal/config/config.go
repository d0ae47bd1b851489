package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Statbank  StatbankConfig  `mapstructure:"statbank"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Reports   []ReportConfig  `mapstructure:"reports"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort     int           `mapstructure:"http_port"` // HTTP server port
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StatbankConfig represents the upstream statistics bank API
type StatbankConfig struct {
	BaseURL         string        `mapstructure:"base_url"`           // e.g. https://api.statbank.dk/v1
	Language        string        `mapstructure:"language"`           // "da" or "en"
	Timeout         time.Duration `mapstructure:"timeout"`            // Per-request timeout
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"` // fasthttp connection limit
	MaxRetries      int           `mapstructure:"max_retries"`        // Attempts for 5xx and transport errors
	StrictValues    bool          `mapstructure:"strict_values"`      // Fail on null values instead of reading them as 0
}

// CacheConfig represents upstream payload cache configuration
type CacheConfig struct {
	Type      string        `mapstructure:"type"`       // memory (default), redis, sqlite, none
	Path      string        `mapstructure:"path"`       // SQLite database file
	URL       string        `mapstructure:"url"`        // Redis URL (e.g., redis://localhost:6379/0)
	Password  string        `mapstructure:"password"`   // Optional authentication
	DB        int           `mapstructure:"db"`         // Redis database number when URL is a bare address
	KeyPrefix string        `mapstructure:"key_prefix"` // Key namespace (default: "statseries")
	TTL       time.Duration `mapstructure:"ttl"`        // Entry lifetime
	Compress  bool          `mapstructure:"compress"`   // Snappy-compress cached payloads
}

// QueueConfig represents message queue configuration for report events
type QueueConfig struct {
	Type          string `mapstructure:"type"`           // Queue type: none (default), nats, redis, kafka, memory
	URL           string `mapstructure:"url"`            // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username      string `mapstructure:"username"`       // Optional authentication
	Password      string `mapstructure:"password"`       // Optional authentication
	SubjectPrefix string `mapstructure:"subject_prefix"` // Reports publish to {prefix}.{name}

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`     // Redis database number (default: 0)
	RedisStream string `mapstructure:"redis_stream"` // Redis stream prefix (default: "statseries")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// SchedulerConfig represents the periodic report refresh
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`         // Standard cron spec or descriptor, e.g. "@hourly"
	RunOnStart bool          `mapstructure:"run_on_start"` // Refresh once at startup
	Timeout    time.Duration `mapstructure:"timeout"`      // Upper bound for one refresh of all reports
}

// ArchiveConfig represents where the scheduler archives rendered charts
type ArchiveConfig struct {
	Type      string `mapstructure:"type"`       // none (default), s3
	Bucket    string `mapstructure:"bucket"`     // Target bucket
	Region    string `mapstructure:"region"`     // Default us-east-1
	Endpoint  string `mapstructure:"endpoint"`   // Custom endpoint, e.g. MinIO
	PathStyle bool   `mapstructure:"path_style"` // Path-style addressing (MinIO)
	Prefix    string `mapstructure:"prefix"`     // Key prefix (default: "reports")
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // Default /metrics
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc
}

// ReportConfig defines one report: a table, a selection, and the operators
// applied to the resulting group.
type ReportConfig struct {
	Name     string           `mapstructure:"name" json:"name"`
	Title    string           `mapstructure:"title" json:"title"`
	Table    string           `mapstructure:"table" json:"table"`
	Selector []SelectorConfig `mapstructure:"selector" json:"selector"`
	Steps    []StepConfig     `mapstructure:"steps" json:"steps"`
}

// SelectorConfig selects values of one table variable by display text
type SelectorConfig struct {
	Variable string   `mapstructure:"variable" json:"variable"`
	Values   []string `mapstructure:"values" json:"values"`
}

// Step operations
const (
	StepAccumulate = "accumulate"
	StepSliceFrom  = "slice_from"
	StepBucket     = "bucket"
	StepScale      = "scale"
	StepSum        = "sum"
	StepNormalize  = "normalize"
	StepGoal       = "goal"
)

// StepConfig is one pipeline operator. Only the fields of its Op are used.
type StepConfig struct {
	Op          string `mapstructure:"op" json:"op"`
	Date        string `mapstructure:"date" json:"date,omitempty"`                 // slice_from
	Weekday     string `mapstructure:"weekday" json:"weekday,omitempty"`           // bucket
	Factor      int64  `mapstructure:"factor" json:"factor,omitempty"`             // scale
	Title       string `mapstructure:"title" json:"title,omitempty"`               // sum, goal
	Reference   string `mapstructure:"reference" json:"reference,omitempty"`       // normalize
	TargetDate  string `mapstructure:"target_date" json:"target_date,omitempty"`   // goal
	TargetValue int64  `mapstructure:"target_value" json:"target_value,omitempty"` // goal
	StepDays    int    `mapstructure:"step_days" json:"step_days,omitempty"`       // goal, default 31
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Statbank.Validate(); err != nil {
		return fmt.Errorf("statbank config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	seen := make(map[string]bool, len(c.Reports))
	for i := range c.Reports {
		r := &c.Reports[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("reports[%d]: %w", i, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("reports[%d]: duplicate report name %q", i, r.Name)
		}
		seen[r.Name] = true
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates statbank configuration
func (c *StatbankConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Type {
	case "", "none":
		return nil
	case "memory":
	case "redis":
		if c.URL == "" {
			return fmt.Errorf("cache.url is required for redis")
		}
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("cache.path is required for sqlite")
		}
	default:
		return fmt.Errorf("cache.type must be one of: memory, redis, sqlite, none")
	}

	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "none", "memory":
	case "nats", "redis":
		if c.URL == "" {
			return fmt.Errorf("queue.url is required for %s", c.Type)
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("queue.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory, none")
	}

	return nil
}

// Validate validates scheduler configuration
func (c *SchedulerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return fmt.Errorf("invalid scheduler.cron %q: %w", c.Cron, err)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("scheduler.timeout must be positive")
	}

	return nil
}

// Validate validates archive configuration
func (c *ArchiveConfig) Validate() error {
	switch c.Type {
	case "", "none":
	case "s3":
		if c.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for s3")
		}
	default:
		return fmt.Errorf("archive.type must be one of: s3, none")
	}

	return nil
}

// Validate validates metrics configuration
func (c *MetricsConfig) Validate() error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

// Validate validates a report definition
func (r *ReportConfig) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}

	if r.Table == "" {
		return fmt.Errorf("report %s: table is required", r.Name)
	}

	for i, s := range r.Selector {
		if s.Variable == "" {
			return fmt.Errorf("report %s: selector[%d].variable is required", r.Name, i)
		}
		if len(s.Values) == 0 {
			return fmt.Errorf("report %s: selector[%d].values is required", r.Name, i)
		}
	}

	for i := range r.Steps {
		if err := r.Steps[i].Validate(); err != nil {
			return fmt.Errorf("report %s: steps[%d]: %w", r.Name, i, err)
		}
	}

	return nil
}

// Validate checks that a step names a known operation and carries its
// arguments.
func (s *StepConfig) Validate() error {
	switch s.Op {
	case StepAccumulate:
	case StepSliceFrom:
		if _, err := ParseDate(s.Date); err != nil {
			return fmt.Errorf("slice_from: %w", err)
		}
	case StepBucket:
		if _, err := ParseWeekday(s.Weekday); err != nil {
			return fmt.Errorf("bucket: %w", err)
		}
	case StepScale:
		if s.Factor == 0 {
			return fmt.Errorf("scale: factor is required")
		}
	case StepSum:
		if s.Title == "" {
			return fmt.Errorf("sum: title is required")
		}
	case StepNormalize:
		if s.Reference == "" {
			return fmt.Errorf("normalize: reference is required")
		}
	case StepGoal:
		if s.Title == "" {
			return fmt.Errorf("goal: title is required")
		}
		if _, err := ParseDate(s.TargetDate); err != nil {
			return fmt.Errorf("goal: %w", err)
		}
		if s.StepDays < 0 {
			return fmt.Errorf("goal: step_days must not be negative")
		}
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}

	return nil
}
