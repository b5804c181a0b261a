package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/ratelimit"
)

// Collector turns limiter observability events into Prometheus series.
// It consumes the event channel so a scrape failure can never reach back
// into scheduling.
type Collector struct {
	registry *prometheus.Registry
	logger   zerolog.Logger

	limiterEvents *prometheus.CounterVec
	limiterWait   *prometheus.GaugeVec
	alertsRouted  *prometheus.CounterVec
}

// NewCollector builds a collector with its own registry.
func NewCollector(logger zerolog.Logger) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		logger:   logger.With().Str("component", "metrics").Logger(),
		limiterEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletwatch_limiter_events_total",
			Help: "Limiter state transitions by kind and endpoint.",
		}, []string{"kind", "endpoint"}),
		limiterWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "walletwatch_limiter_wait_seconds",
			Help: "Most recent quota suspension per endpoint.",
		}, []string{"endpoint"}),
		alertsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletwatch_alerts_total",
			Help: "Alert candidates produced by kind.",
		}, []string{"kind"}),
	}

	registry.MustRegister(c.limiterEvents, c.limiterWait, c.alertsRouted)
	return c
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// CountAlert records one routed alert candidate.
func (c *Collector) CountAlert(kind string) {
	c.alertsRouted.WithLabelValues(kind).Inc()
}

// Run drains limiter events until ctx is cancelled or the channel closes.
func (c *Collector) Run(ctx context.Context, events <-chan ratelimit.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.observe(ev)
		}
	}
}

func (c *Collector) observe(ev ratelimit.Event) {
	c.limiterEvents.WithLabelValues(string(ev.Kind), ev.Endpoint).Inc()
	if ev.Kind == ratelimit.EventRateLimitWarning {
		c.limiterWait.WithLabelValues(ev.Endpoint).Set(ev.Wait.Seconds())
	}
}
