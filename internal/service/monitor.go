package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/config"
	"wallet-activity-alerts/internal/fetcher"
	"wallet-activity-alerts/internal/ratelimit"
	"wallet-activity-alerts/internal/storage"
	"wallet-activity-alerts/internal/watch"
)

// Dispatcher routes classified candidates to their destinations.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidate classify.Candidate)
}

// AlertCounter observes emitted alerts. Satisfied by the metrics collector.
type AlertCounter interface {
	CountAlert(kind string)
}

// Monitor orchestrates feed polling, webhook ingestion, classification,
// routing, and alert auditing.
type Monitor struct {
	limiter    *ratelimit.Limiter
	feed       fetcher.FeedFetcher
	classifier *classify.Classifier
	dispatcher Dispatcher
	registry   *watch.Registry
	watchStore storage.WatchStore
	alertStore storage.AlertStore
	counter    AlertCounter
	logger     zerolog.Logger
}

// Options collects the monitor collaborators. Limiter, feed, classifier,
// dispatcher, and registry are required; the stores and counter are optional.
type Options struct {
	Limiter    *ratelimit.Limiter
	Feed       fetcher.FeedFetcher
	Classifier *classify.Classifier
	Dispatcher Dispatcher
	Registry   *watch.Registry
	WatchStore storage.WatchStore
	AlertStore storage.AlertStore
	Counter    AlertCounter
}

// New constructs the monitor.
func New(opts Options, logger zerolog.Logger) *Monitor {
	return &Monitor{
		limiter:    opts.Limiter,
		feed:       opts.Feed,
		classifier: opts.Classifier,
		dispatcher: opts.Dispatcher,
		registry:   opts.Registry,
		watchStore: opts.WatchStore,
		alertStore: opts.AlertStore,
		counter:    opts.Counter,
		logger:     logger.With().Str("component", "monitor").Logger(),
	}
}

// PollCycle 执行一轮社交源轮询。Accounts are visited in id order and a
// quota exhaustion abandons the remainder of the cycle; the next cycle
// resumes from the stored cursors.
func (m *Monitor) PollCycle(ctx context.Context, cycle time.Time) error {
	accounts := m.registry.Accounts()
	if len(accounts) == 0 {
		m.logger.Debug().Time("cycle", cycle).Msg("no watched accounts, skipping cycle")
		return nil
	}

	for _, account := range accounts {
		if err := m.pollAccount(ctx, account); err != nil {
			var quota *ratelimit.QuotaExceededError
			if errors.As(err, &quota) {
				m.logger.Warn().
					Str("endpoint", quota.Endpoint).
					Time("reset_at", quota.ResetAt).
					Msg("feed quota exhausted, abandoning cycle")
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			m.logger.Error().Err(err).Str("account", account.ID).Msg("account poll failed")
		}
	}
	return nil
}

func (m *Monitor) pollAccount(ctx context.Context, account watch.Account) error {
	var posts []classify.Post
	err := m.limiter.Do(ctx, config.EndpointFeedTimeline, func(ctx context.Context) error {
		fetched, fetchErr := m.feed.FetchPosts(ctx, account.ID, account.LastPostID)
		if fetchErr != nil {
			return fetchErr
		}
		posts = fetched
		return nil
	})
	if err != nil {
		return err
	}

	for _, post := range posts {
		if candidate := m.classifier.ClassifyPost(ctx, post, account.Priority); candidate != nil {
			m.emit(ctx, *candidate)
		}
		m.advanceCursor(ctx, account.ID, post.ID)
	}
	return nil
}

// HandleTransaction classifies one webhook transaction record and
// dispatches the resulting candidate. Satisfies ingest.TxHandler.
func (m *Monitor) HandleTransaction(ctx context.Context, tx classify.Transaction) {
	if candidate := m.classifier.ClassifyTransaction(ctx, tx); candidate != nil {
		m.emit(ctx, *candidate)
	}
}

// HandleTransactions replays a batch of records in order.
func (m *Monitor) HandleTransactions(ctx context.Context, txs []classify.Transaction) error {
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.HandleTransaction(ctx, tx)
	}
	return nil
}

// emit routes one candidate and records it in the audit trail. Audit
// failures never block delivery.
func (m *Monitor) emit(ctx context.Context, candidate classify.Candidate) {
	m.dispatcher.Dispatch(ctx, candidate)

	if m.counter != nil {
		m.counter.CountAlert(string(candidate.Kind))
	}

	if m.alertStore == nil {
		return
	}

	record := storage.AlertRecord{
		ID:       candidate.ID,
		Kind:     string(candidate.Kind),
		SourceID: candidate.SourceID,
		EventID:  candidate.EventID,
		Priority: candidate.Priority,
		OnTopic:  candidate.OnTopic,
		USDValue: candidate.USDValue,
	}
	if candidate.TxSignature != "" {
		signature := candidate.TxSignature
		record.TxSignature = &signature
	}

	if err := m.alertStore.InsertAlert(ctx, record); err != nil {
		m.logger.Error().Err(err).Str("alert_id", candidate.ID).Msg("alert audit insert failed")
	}
}

func (m *Monitor) advanceCursor(ctx context.Context, accountID, postID string) {
	m.registry.SetCursor(accountID, postID)
	if m.watchStore == nil {
		return
	}
	if err := m.watchStore.UpdateAccountCursor(ctx, accountID, postID); err != nil {
		m.logger.Warn().Err(err).Str("account", accountID).Msg("cursor persistence failed")
	}
}
