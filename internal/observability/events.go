package observability

import (
	"log/slog"
	"sync"
	"time"
)

type EventKind string

const (
	EventAttempted EventKind = "attempted"
	EventSucceeded EventKind = "succeeded"
	EventEmpty     EventKind = "empty"
	EventFailed    EventKind = "failed"
	// EventExhausted closes a cascade in which no strategy was accepted.
	EventExhausted EventKind = "exhausted"
)

// Event describes one step of a cascade. Pipeline names the cascade
// ("products", "category"), Strategy the candidate label.
type Event struct {
	Pipeline  string
	Strategy  string
	Kind      EventKind
	Items     int
	Err       error
	ErrorType string
	Duration  time.Duration
}

type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Fanout forwards events to every non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"pipeline", e.Pipeline,
		"strategy", e.Strategy,
	}
	switch e.Kind {
	case EventAttempted:
		logger.Debug("trying strategy", attrs...)
	case EventSucceeded:
		logger.Info("strategy succeeded", append(attrs, "items", e.Items, "duration", e.Duration)...)
	case EventEmpty:
		logger.Info("strategy returned nothing", append(attrs, "duration", e.Duration)...)
	case EventFailed:
		logger.Warn("strategy failed", append(attrs, "error_type", e.ErrorType, "error", e.Err, "duration", e.Duration)...)
	case EventExhausted:
		logger.Warn("all strategies exhausted", "pipeline", e.Pipeline)
	}
}

// StatsSink feeds the package counters.
type StatsSink struct{}

func (StatsSink) Emit(e Event) {
	switch e.Kind {
	case EventSucceeded:
		IncStrategyWin(e.Pipeline + ":" + e.Strategy)
		ObserveCandidateDuration(e.Duration.Seconds())
	case EventEmpty:
		ObserveCandidateDuration(e.Duration.Seconds())
	case EventFailed:
		IncError(e.ErrorType, e.Strategy)
		ObserveCandidateDuration(e.Duration.Seconds())
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns "strategy:kind" for every recorded event, in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Strategy+":"+string(e.Kind))
	}
	return out
}
