package route

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/watch"
)

// ChannelKind names a routing destination class.
type ChannelKind string

const (
	// ChannelPriority receives posts from priority accounts.
	ChannelPriority ChannelKind = "priority"
	// ChannelTopic receives posts confirmed to reference a known token.
	ChannelTopic ChannelKind = "topic"
	// ChannelFirehose receives every social alert unconditionally.
	ChannelFirehose ChannelKind = "firehose"
	// ChannelWallet receives every transaction alert.
	ChannelWallet ChannelKind = "wallet"
)

// ChannelSink delivers a candidate to one community channel. escalated asks
// the sink for its high-severity presentation.
type ChannelSink interface {
	Name() string
	Send(ctx context.Context, candidate classify.Candidate, escalated bool) error
}

// SMSSink delivers a short notice to one phone number.
type SMSSink interface {
	SendSMS(ctx context.Context, phone string, candidate classify.Candidate) error
}

// Directory resolves SMS recipients. Satisfied by *watch.Registry.
type Directory interface {
	ActiveSubscribers() []watch.Subscriber
	WalletSubscriber(address string) (watch.Subscriber, bool)
}

// smsThreshold gates transaction SMS dispatches, inclusive.
var smsThreshold = decimal.NewFromInt(1000)

// Router fans alert candidates out to channel and SMS sinks. Dispatch to
// each sink is isolated; one failure never blocks the rest.
type Router struct {
	channels  map[ChannelKind]ChannelSink
	sms       SMSSink
	directory Directory
	logger    zerolog.Logger

	mu        sync.Mutex
	delivered map[string]struct{}
}

// New constructs a Router. Nil sinks are skipped at dispatch time.
func New(channels map[ChannelKind]ChannelSink, sms SMSSink, directory Directory, logger zerolog.Logger) *Router {
	return &Router{
		channels:  channels,
		sms:       sms,
		directory: directory,
		logger:    logger.With().Str("component", "router").Logger(),
		delivered: make(map[string]struct{}),
	}
}

// Dispatch routes one candidate to its destinations.
func (r *Router) Dispatch(ctx context.Context, candidate classify.Candidate) {
	if candidate.Kind == classify.KindTransfer {
		r.dispatchTransfer(ctx, candidate)
		return
	}
	r.dispatchSocial(ctx, candidate)
}

func (r *Router) dispatchSocial(ctx context.Context, candidate classify.Candidate) {
	if candidate.Priority {
		r.sendChannel(ctx, ChannelPriority, candidate, false)
		r.smsFanout(ctx, candidate)
	}
	if candidate.OnTopic {
		r.sendChannel(ctx, ChannelTopic, candidate, false)
		r.smsFanout(ctx, candidate)
	}
	// Every social alert lands in the firehose, tagged or not.
	r.sendChannel(ctx, ChannelFirehose, candidate, false)
}

func (r *Router) dispatchTransfer(ctx context.Context, candidate classify.Candidate) {
	escalated := candidate.USDValue.GreaterThanOrEqual(smsThreshold)
	r.sendChannel(ctx, ChannelWallet, candidate, escalated)

	if !escalated || r.sms == nil || r.directory == nil {
		return
	}
	subscriber, ok := r.directory.WalletSubscriber(candidate.SourceID)
	if !ok {
		return
	}
	r.sendSMS(ctx, subscriber.Phone, candidate)
}

// smsFanout texts every active subscriber once per candidate, even when
// multiple routing rules fire for the same post.
func (r *Router) smsFanout(ctx context.Context, candidate classify.Candidate) {
	if r.sms == nil || r.directory == nil {
		return
	}
	for _, subscriber := range r.directory.ActiveSubscribers() {
		r.sendSMS(ctx, subscriber.Phone, candidate)
	}
}

func (r *Router) sendChannel(ctx context.Context, kind ChannelKind, candidate classify.Candidate, escalated bool) {
	sink, ok := r.channels[kind]
	if !ok || sink == nil {
		return
	}
	if !r.markDelivered(candidate, "channel:"+string(kind)) {
		return
	}
	if err := sink.Send(ctx, candidate, escalated); err != nil {
		r.logger.Error().Err(err).
			Str("channel", sink.Name()).
			Str("event_id", eventKey(candidate)).
			Msg("channel dispatch failed")
	}
}

func (r *Router) sendSMS(ctx context.Context, phone string, candidate classify.Candidate) {
	if !r.markDelivered(candidate, "sms:"+phone) {
		return
	}
	if err := r.sms.SendSMS(ctx, phone, candidate); err != nil {
		r.logger.Error().Err(err).
			Str("phone", phone).
			Str("event_id", eventKey(candidate)).
			Msg("sms dispatch failed")
	}
}

// markDelivered records a (event, recipient) pair, reporting whether this is
// its first delivery attempt. Failed sends are not re-attempted; delivery is
// at-most-once.
func (r *Router) markDelivered(candidate classify.Candidate, recipient string) bool {
	key := eventKey(candidate) + "|" + recipient

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.delivered[key]; done {
		return false
	}
	r.delivered[key] = struct{}{}
	return true
}

func eventKey(candidate classify.Candidate) string {
	if candidate.EventID != "" {
		return candidate.EventID
	}
	return candidate.ID
}
