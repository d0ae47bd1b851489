package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")               // Current directory
		v.AddConfigPath("./configs")       // Project configs directory
		v.AddConfigPath("./config")        // Alternative config directory
		v.AddConfigPath("/etc/statseries") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. STATSERIES_SERVER_HTTP_PORT
	v.SetEnvPrefix("STATSERIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5580)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Statbank defaults
	v.SetDefault("statbank.base_url", "https://api.statbank.dk/v1")
	v.SetDefault("statbank.language", "da")
	v.SetDefault("statbank.timeout", "30s")
	v.SetDefault("statbank.max_conns_per_host", 16)
	v.SetDefault("statbank.max_retries", 3)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.key_prefix", "statseries")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.compress", true)

	// Queue defaults
	v.SetDefault("queue.type", "none")
	v.SetDefault("queue.subject_prefix", "statseries.reports")
	v.SetDefault("queue.redis_stream", "statseries")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "@hourly")
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.timeout", "5m")

	// Archive defaults
	v.SetDefault("archive.type", "none")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.prefix", "reports")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			HTTPPort:     5580,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Statbank: StatbankConfig{
			BaseURL:         "https://api.statbank.dk/v1",
			Language:        "da",
			Timeout:         30 * time.Second,
			MaxConnsPerHost: 16,
			MaxRetries:      3,
		},
		Cache: CacheConfig{
			Type:      "memory",
			KeyPrefix: "statseries",
			TTL:       time.Hour,
			Compress:  true,
		},
		Queue: QueueConfig{
			Type:          "none",
			SubjectPrefix: "statseries.reports",
			RedisStream:   "statseries",
		},
		Scheduler: SchedulerConfig{
			Cron:       "@hourly",
			RunOnStart: true,
			Timeout:    5 * time.Minute,
		},
		Archive: ArchiveConfig{
			Type:   "none",
			Region: "us-east-1",
			Prefix: "reports",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
