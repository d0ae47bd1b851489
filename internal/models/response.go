package models

import "time"

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ReportSummary describes a configured report
type ReportSummary struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Table string `json:"table"`
	Steps int    `json:"steps"`
}

// ReportListResponse represents list reports response
type ReportListResponse struct {
	Reports []ReportSummary `json:"reports"`
}

// ReportResponse is a computed report. Values of every series are aligned
// to Labels, with 0 where a series has no entry.
type ReportResponse struct {
	Name        string           `json:"name"`
	Title       string           `json:"title"`
	Table       string           `json:"table"`
	Updated     time.Time        `json:"updated"`
	GeneratedAt time.Time        `json:"generated_at"`
	Labels      []string         `json:"labels"`
	Series      []SeriesResponse `json:"series"`
}

// SeriesResponse is one member series of a report
type SeriesResponse struct {
	Label  string          `json:"label"`
	Tags   []string        `json:"tags"`
	Values []int64         `json:"values"`
	Points []PointResponse `json:"points"`
}

// PointResponse is one dated value, date formatted YYYY-MM-DD
type PointResponse struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// ReportEvent is published after a scheduled refresh
type ReportEvent struct {
	Report      string          `json:"report"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     *ReportResponse `json:"payload,omitempty"`
	Error       *ErrorDetail    `json:"error,omitempty"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
