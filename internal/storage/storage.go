// Package storage holds the types shared by the event log backends.
package storage

import "time"

// EventRow is an event read back from a persisted event log.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	StoryID   string                 `json:"story_id"`
	SessionID *string                `json:"session_id,omitempty"`
}

// EventQuerier reads the most recent events of a story, newest first.
type EventQuerier interface {
	Query(limit int) ([]EventRow, error)
}

// String returns a field as a string, or "" when absent.
func (r EventRow) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Int returns a numeric field as an int. JSON decoding yields float64, so
// both float64 and int are accepted.
func (r EventRow) Int(key string) (int, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
