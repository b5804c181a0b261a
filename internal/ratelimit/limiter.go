package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultSafetyMargin = 0.9
	fallbackReset       = time.Minute
	eventBufferSize     = 64
)

// Operation is one asynchronous unit of work admitted through the limiter.
// Callers capture results in the closure.
type Operation func(ctx context.Context) error

// EndpointConfig is the quota policy for one logical operation class.
type EndpointConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Batch    bool          `mapstructure:"batch"`
}

// BatchConfig paces batch-class endpoints globally and bounds their retries.
type BatchConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// Options tune limiter behaviour.
type Options struct {
	Endpoints    map[string]EndpointConfig
	SafetyMargin float64
	Batch        BatchConfig
}

// window is the current quota-accounting period for one endpoint. Windows
// are replaced on reset, never mutated in place.
type window struct {
	start time.Time
	count int
}

// Limiter admits operations against per-endpoint sliding windows. Batch-class
// endpoints are additionally serialized through a shared pacing gate and get
// bounded retry on classified rate-limit failures.
type Limiter struct {
	opts   Options
	logger zerolog.Logger
	events chan Event

	mu        sync.Mutex
	windows   map[string]*window
	lastBatch time.Time

	gate *rate.Limiter

	// overridable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Limiter.
func New(opts Options, logger zerolog.Logger) *Limiter {
	if opts.SafetyMargin == 0 {
		opts.SafetyMargin = defaultSafetyMargin
	}
	if opts.SafetyMargin < 0 || opts.SafetyMargin > 1 {
		panic("ratelimit safety margin must be in (0,1]")
	}
	for key, cfg := range opts.Endpoints {
		if cfg.Requests <= 0 || cfg.Window <= 0 {
			panic(fmt.Sprintf("ratelimit endpoint %q requires positive requests and window", key))
		}
	}

	var gate *rate.Limiter
	if opts.Batch.MinInterval > 0 {
		gate = rate.NewLimiter(rate.Every(opts.Batch.MinInterval), 1)
	}

	return &Limiter{
		opts:    opts,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
		events:  make(chan Event, eventBufferSize),
		windows: make(map[string]*window),
		gate:    gate,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Do admits and executes op under the quota policy of endpoint. It blocks
// while the window is exhausted and returns op's error after classification.
func (l *Limiter) Do(ctx context.Context, endpoint string, op Operation) error {
	cfg, ok := l.opts.Endpoints[endpoint]
	if !ok {
		return fmt.Errorf("ratelimit: unknown endpoint %q", endpoint)
	}

	if cfg.Batch {
		return l.doBatch(ctx, endpoint, cfg, op)
	}

	if err := l.admit(ctx, endpoint, cfg); err != nil {
		return err
	}

	l.emit(Event{Kind: EventRequestScheduled, Endpoint: endpoint})
	if err := op(ctx); err != nil {
		return l.classifyFailure(endpoint, err)
	}
	l.emit(Event{Kind: EventRequestCompleted, Endpoint: endpoint})
	return nil
}

// admit consumes one slot from the endpoint window, waiting out the window
// boundary when the safe limit is reached. The window is fully updated before
// control yields, so concurrent callers never observe a stale window.
func (l *Limiter) admit(ctx context.Context, endpoint string, cfg EndpointConfig) error {
	limit := safeLimit(cfg.Requests, l.opts.SafetyMargin)

	for {
		l.mu.Lock()
		now := l.now()
		w := l.windows[endpoint]
		if w == nil || now.Sub(w.start) >= cfg.Window {
			if w != nil {
				l.emit(Event{Kind: EventRateLimitReset, Endpoint: endpoint})
			}
			w = &window{start: now}
			l.windows[endpoint] = w
		}

		if w.count < limit {
			w.count++
			l.mu.Unlock()
			return nil
		}

		wait := cfg.Window - now.Sub(w.start)
		l.mu.Unlock()

		l.emit(Event{Kind: EventRateLimitWarning, Endpoint: endpoint, Wait: wait})
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		// The window has expired by now; the next iteration replaces it.
	}
}

// doBatch serializes the call behind the global pacing gate, then retries
// classified rate-limit failures with a fixed delay up to the retry budget.
func (l *Limiter) doBatch(ctx context.Context, endpoint string, cfg EndpointConfig, op Operation) error {
	if l.gate != nil {
		if err := l.gate.Wait(ctx); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		if err := l.admit(ctx, endpoint, cfg); err != nil {
			return err
		}

		l.mu.Lock()
		l.lastBatch = l.now()
		l.mu.Unlock()

		l.emit(Event{Kind: EventRequestScheduled, Endpoint: endpoint})
		err := op(ctx)
		if err == nil {
			l.emit(Event{Kind: EventRequestCompleted, Endpoint: endpoint})
			return nil
		}

		classified := l.classifyFailure(endpoint, err)
		var quota *QuotaExceededError
		if !errors.As(classified, &quota) {
			return classified
		}
		if attempt >= l.opts.Batch.MaxRetries {
			return classified
		}

		l.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Msg("batch call rate limited, retrying")
		if err := l.sleep(ctx, l.opts.Batch.RetryDelay); err != nil {
			return err
		}
	}
}

// classifyFailure normalizes op failures. Rate-limit failures reset the
// endpoint window and come back as *QuotaExceededError; everything else is
// emitted as a generic failure and returned unchanged.
func (l *Limiter) classifyFailure(endpoint string, err error) error {
	if !isRateLimited(err) {
		l.emit(Event{Kind: EventRequestFailed, Endpoint: endpoint, Err: err})
		return err
	}

	l.mu.Lock()
	delete(l.windows, endpoint)
	l.mu.Unlock()

	reset := resetHint(err)
	if reset.IsZero() {
		reset = l.now().Add(fallbackReset)
	}

	l.emit(Event{Kind: EventRateLimitExceeded, Endpoint: endpoint, Err: err})
	return &QuotaExceededError{Endpoint: endpoint, ResetAt: reset, cause: err}
}

// LastBatch reports when the most recent batch-class operation began.
func (l *Limiter) LastBatch() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastBatch
}

func safeLimit(requests int, margin float64) int {
	limit := int(math.Floor(float64(requests) * margin))
	if limit < 1 {
		limit = 1
	}
	return limit
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
