package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultGoalStepDays is used when a goal step leaves step_days unset
const DefaultGoalStepDays = 31

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.HTTPPort))
}

// Report returns the report definition with the given name
func (c *Config) Report(name string) (ReportConfig, bool) {
	for _, r := range c.Reports {
		if r.Name == name {
			return r, true
		}
	}
	return ReportConfig{}, false
}

// SelectorMap returns the selector as variable id to value texts
func (r *ReportConfig) SelectorMap() map[string][]string {
	out := make(map[string][]string, len(r.Selector))
	for _, s := range r.Selector {
		out[s.Variable] = append(out[s.Variable], s.Values...)
	}
	return out
}

// GoalStep returns the goal step hint as a duration
func (s *StepConfig) GoalStep() time.Duration {
	days := s.StepDays
	if days == 0 {
		days = DefaultGoalStepDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseWeekday parses an English weekday name, case-insensitively
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return wd, nil
}
