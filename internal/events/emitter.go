package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var buffer = NewRingBuffer(256)

// Sink persists emitted events. Postgres and SQLite clients implement it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

var (
	sink          Sink
	sinkMu        sync.RWMutex
	sinkErrLogged bool
	logger        *slog.Logger
	sessionID     string
	totalCount    atomic.Int64
)

// SetSink sets the store events are persisted to. nil disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrLogged = false
	sinkMu.Unlock()
}

// GetSink returns the current event sink.
func GetSink() Sink {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// SetLogger mirrors every emitted event into logger. nil disables the mirror.
func SetLogger(l *slog.Logger) {
	sinkMu.Lock()
	logger = l
	sinkMu.Unlock()
}

// SetSessionID tags persisted events with a play session id.
func SetSessionID(id string) {
	sinkMu.Lock()
	sessionID = id
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalCount.Add(1)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	l := logger
	session := sessionID
	errorLogged := sinkErrLogged
	sinkMu.RUnlock()

	if l != nil {
		l.Log(context.Background(), slogLevel(level), name, slogArgs(msg, fields)...)
	}

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields, session); err != nil && !errorLogged {
			// Log once to avoid spam. The error event goes straight to the
			// buffer, not through Emit, so a failing sink cannot recurse.
			sinkMu.Lock()
			first := !sinkErrLogged
			sinkErrLogged = true
			sinkMu.Unlock()
			if first {
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				})
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func slogArgs(msg string, fields map[string]interface{}) []any {
	args := make([]any, 0, 2*len(fields)+2)
	if msg != "" {
		args = append(args, "detail", msg)
	}
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalCount.Load()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}

// Find returns the buffered events with the given name, oldest first.
func Find(name string) []Event {
	var out []Event
	for _, e := range buffer.Snapshot() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
