package analytics

import (
	"log/slog"
	"time"
)

// Event is a fire-and-forget analytics record. The real sink lives outside
// this service; Track must never block or fail the caller.
type Event struct {
	Name      string
	UserID    string
	SessionID string
	Props     map[string]string
	At        time.Time
}

type Sink interface {
	Track(ev Event)
}

// SlogSink is the default sink: it writes events to the structured log so
// the pipeline can scrape them until a dedicated collector is wired.
type SlogSink struct{}

func (SlogSink) Track(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	slog.Debug("analytics event",
		"event", ev.Name,
		"user_id", ev.UserID,
		"session_id", ev.SessionID,
		"props", ev.Props,
		"at", ev.At)
}

// NopSink drops everything; used in tests.
type NopSink struct{}

func (NopSink) Track(Event) {}
