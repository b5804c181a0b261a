package ratelimit

import (
	"time"
)

// EventKind labels a limiter state transition.
type EventKind string

const (
	EventRateLimitExceeded EventKind = "rate_limit_exceeded"
	EventRateLimitWarning  EventKind = "rate_limit_warning"
	EventRateLimitReset    EventKind = "rate_limit_reset"
	EventRequestScheduled  EventKind = "request_scheduled"
	EventRequestCompleted  EventKind = "request_completed"
	EventRequestFailed     EventKind = "request_failed"
)

// Event describes one limiter state transition. Events are observability
// only; consumers never feed back into scheduling decisions.
type Event struct {
	Kind     EventKind
	Endpoint string
	At       time.Time
	Wait     time.Duration
	Err      error
}

func (l *Limiter) emit(ev Event) {
	ev.At = l.now()
	l.logger.Debug().
		Str("event", string(ev.Kind)).
		Str("endpoint", ev.Endpoint).
		Dur("wait", ev.Wait).
		Msg("limiter event")

	if l.events == nil {
		return
	}
	// Non-blocking send: a slow or absent consumer must never stall Do.
	select {
	case l.events <- ev:
	default:
	}
}

// Events returns the bounded observability channel. Events are dropped when
// the buffer is full.
func (l *Limiter) Events() <-chan Event {
	return l.events
}
