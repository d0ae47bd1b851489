package jsonstat

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// TimestampLayout is the table-info "updated" format. Values are UTC.
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp is a time encoded with TimestampLayout
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses a TimestampLayout string
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON formats the time with TimestampLayout
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

type Contact struct {
	Mail  string `json:"mail"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Documentation struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Footnote struct {
	Text      string `json:"text"`
	Mandatory bool   `json:"mandatory"`
}

// Value is one selectable value of a variable
type Value struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Variable describes a table variable and its selectable values
type Variable struct {
	Elimination bool    `json:"elimination"`
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Time        bool    `json:"time"`
	Values      []Value `json:"values"`
}

// ValueID returns the id of the value displayed as text. Matching ignores
// case; an exact id is accepted as well.
func (v Variable) ValueID(text string) (string, bool) {
	for _, val := range v.Values {
		if val.Text == text {
			return val.ID, true
		}
	}
	for _, val := range v.Values {
		if strings.EqualFold(val.Text, text) || val.ID == text {
			return val.ID, true
		}
	}
	return "", false
}

// TableInfo is the table-info document
type TableInfo struct {
	Active              bool          `json:"active"`
	Contacts            []Contact     `json:"contacts"`
	Description         string        `json:"description"`
	Documentation       Documentation `json:"documentation"`
	Footnote            *Footnote     `json:"footnote"`
	ID                  string        `json:"id"`
	SuppressedDataValue string        `json:"suppressedDataValue"`
	Text                string        `json:"text"`
	Unit                string        `json:"unit"`
	Updated             Timestamp     `json:"updated"`
	Variables           []Variable    `json:"variables"`
}

// Variable returns the variable with the given id
func (t *TableInfo) Variable(id string) (Variable, bool) {
	for _, v := range t.Variables {
		if v.ID == id {
			return v, true
		}
	}
	return Variable{}, false
}

// TimeVariable returns the variable flagged as time
func (t *TableInfo) TimeVariable() (Variable, error) {
	for _, v := range t.Variables {
		if v.Time {
			return v, nil
		}
	}
	return Variable{}, fmt.Errorf("table %s has no time variable", t.ID)
}

// ParseTableInfo decodes a table-info response body
func ParseTableInfo(body []byte) (*TableInfo, error) {
	var info TableInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: table info: %v", ErrMalformed, err)
	}
	return &info, nil
}
