// Package progress carries generation progress events from the
// orchestrator to observers: the console, the log, an events.jsonl file,
// and metrics.
package progress

import (
	"log/slog"
	"time"
)

// Kind is the type of a progress event.
type Kind string

const (
	// Section events
	KindGenerating Kind = "generating"
	KindCompleted  Kind = "completed"
	KindFailed     Kind = "failed"

	// Chapter events
	KindStarted          Kind = "started"
	KindSkipped          Kind = "skipped"
	KindChapterCompleted Kind = "chapter_completed"
	KindChapterStopped   Kind = "chapter_stopped"
)

// Event is one progress notification. SectionID is empty for chapter-level
// events.
type Event struct {
	RunID      string    `json:"run_id,omitempty"`
	ChapterID  string    `json:"chapter_id"`
	SectionID  string    `json:"section_id,omitempty"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message,omitempty"`
	ErrorClass string    `json:"error_class,omitempty"`
	Tokens     int       `json:"tokens,omitempty"`
	Duration   float64   `json:"duration_seconds,omitempty"`
	Time       time.Time `json:"time"`
}

// Sink receives progress events. Emit is called concurrently from chapter
// workers and must not block for long or panic.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to a Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Multi fans each event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return multi(live)
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// LogSink writes events to a structured logger. Failures log at warn,
// everything else at info.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"chapter", e.ChapterID}
	if e.SectionID != "" {
		attrs = append(attrs, "section", e.SectionID)
	}
	if e.Message != "" {
		attrs = append(attrs, "message", e.Message)
	}
	if e.Tokens > 0 {
		attrs = append(attrs, "tokens", e.Tokens)
	}

	switch e.Kind {
	case KindFailed, KindChapterStopped:
		logger.Warn(string(e.Kind), attrs...)
	case KindGenerating:
		logger.Debug(string(e.Kind), attrs...)
	default:
		logger.Info(string(e.Kind), attrs...)
	}
}
