package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"wallet-activity-alerts/internal/ratelimit"
)

func TestCollectorObservesLimiterEvents(t *testing.T) {
	c := NewCollector(zerolog.Nop())

	events := make(chan ratelimit.Event, 4)
	events <- ratelimit.Event{Kind: ratelimit.EventRequestScheduled, Endpoint: "timeline"}
	events <- ratelimit.Event{Kind: ratelimit.EventRequestScheduled, Endpoint: "timeline"}
	events <- ratelimit.Event{Kind: ratelimit.EventRateLimitWarning, Endpoint: "timeline", Wait: 30 * time.Second}
	close(events)

	c.Run(context.Background(), events)

	scheduled := c.limiterEvents.WithLabelValues(string(ratelimit.EventRequestScheduled), "timeline")
	assert.Equal(t, float64(2), testutil.ToFloat64(scheduled))

	wait := c.limiterWait.WithLabelValues("timeline")
	assert.Equal(t, float64(30), testutil.ToFloat64(wait))
}

func TestCollectorCountAlert(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	c.CountAlert("transfer")
	c.CountAlert("transfer")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.alertsRouted.WithLabelValues("transfer")))
}
