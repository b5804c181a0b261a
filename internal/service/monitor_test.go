package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/config"
	"wallet-activity-alerts/internal/ratelimit"
	"wallet-activity-alerts/internal/storage"
	"wallet-activity-alerts/internal/watch"
)

type stubFeed struct {
	mu    sync.Mutex
	posts map[string][]classify.Post
	errs  map[string]error
	calls []string
}

func (s *stubFeed) FetchPosts(_ context.Context, accountID, _ string) ([]classify.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, accountID)
	if err := s.errs[accountID]; err != nil {
		return nil, err
	}
	return s.posts[accountID], nil
}

type recordingDispatcher struct {
	mu         sync.Mutex
	candidates []classify.Candidate
}

func (d *recordingDispatcher) Dispatch(_ context.Context, candidate classify.Candidate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidates = append(d.candidates, candidate)
}

type memoryAlertStore struct {
	mu      sync.Mutex
	records []storage.AlertRecord
	fail    bool
}

func (m *memoryAlertStore) InsertAlert(_ context.Context, record storage.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("insert failed")
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryAlertStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return nil, nil
}

func (m *memoryAlertStore) ListAlertsBetween(context.Context, time.Time, time.Time) ([]storage.AlertRecord, error) {
	return nil, nil
}

func (m *memoryAlertStore) DeleteAlertsBefore(context.Context, time.Time) error {
	return nil
}

// cursorStore only implements the cursor update path; the embedded
// interface covers the rest.
type cursorStore struct {
	storage.WatchStore
	mu      sync.Mutex
	cursors map[string]string
}

func (c *cursorStore) UpdateAccountCursor(_ context.Context, id, lastPostID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursors == nil {
		c.cursors = make(map[string]string)
	}
	c.cursors[id] = lastPostID
	return nil
}

func testLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	return ratelimit.New(ratelimit.Options{
		Endpoints: map[string]ratelimit.EndpointConfig{
			config.EndpointFeedTimeline: {Requests: 100, Window: time.Minute},
			config.EndpointTokenLookup:  {Requests: 100, Window: time.Minute},
		},
		SafetyMargin: 0.9,
	}, zerolog.Nop())
}

type nilResolver struct{}

func (nilResolver) ResolveToken(context.Context, string) (*classify.TokenInfo, error) {
	return nil, nil
}

type noMarket struct{}

func (noMarket) NativePriceUSD(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (noMarket) TokenStats(context.Context, string) (*classify.Enrichment, error) {
	return nil, nil
}

func newTestMonitor(t *testing.T, feed *stubFeed, registry *watch.Registry, alerts storage.AlertStore, cursors storage.WatchStore) (*Monitor, *recordingDispatcher) {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	classifier := classify.New(nilResolver{}, noMarket{}, zerolog.Nop())
	monitor := New(Options{
		Limiter:    testLimiter(t),
		Feed:       feed,
		Classifier: classifier,
		Dispatcher: dispatcher,
		Registry:   registry,
		WatchStore: cursors,
		AlertStore: alerts,
	}, zerolog.Nop())
	return monitor, dispatcher
}

func TestPollCycleDispatchesAndAdvancesCursor(t *testing.T) {
	registry := watch.NewRegistry()
	registry.PutAccount(watch.Account{ID: "acct-1", Handle: "alpha", Priority: true})

	feed := &stubFeed{posts: map[string][]classify.Post{
		"acct-1": {
			{ID: "p1", AuthorID: "acct-1", Text: "gm"},
			{ID: "p2", AuthorID: "acct-1", Text: "wagmi"},
		},
	}}
	alerts := &memoryAlertStore{}
	cursors := &cursorStore{}
	monitor, dispatcher := newTestMonitor(t, feed, registry, alerts, cursors)

	require.NoError(t, monitor.PollCycle(context.Background(), time.Now()))

	require.Len(t, dispatcher.candidates, 2)
	assert.True(t, dispatcher.candidates[0].Priority)
	assert.Equal(t, classify.KindPost, dispatcher.candidates[0].Kind)

	account, ok := registry.Account("acct-1")
	require.True(t, ok)
	assert.Equal(t, "p2", account.LastPostID)
	assert.Equal(t, "p2", cursors.cursors["acct-1"])

	require.Len(t, alerts.records, 2)
	assert.Equal(t, "p1", alerts.records[0].EventID)
}

func TestPollCycleQuotaAbandonsRemainder(t *testing.T) {
	registry := watch.NewRegistry()
	registry.PutAccount(watch.Account{ID: "acct-1", Handle: "alpha"})
	registry.PutAccount(watch.Account{ID: "acct-2", Handle: "beta"})

	feed := &stubFeed{errs: map[string]error{
		"acct-1": &ratelimit.ProviderError{Status: 429, Message: "Too Many Requests"},
	}}
	monitor, dispatcher := newTestMonitor(t, feed, registry, &memoryAlertStore{}, nil)

	require.NoError(t, monitor.PollCycle(context.Background(), time.Now()))

	assert.Equal(t, []string{"acct-1"}, feed.calls)
	assert.Empty(t, dispatcher.candidates)
}

func TestPollCycleContinuesPastAccountFailure(t *testing.T) {
	registry := watch.NewRegistry()
	registry.PutAccount(watch.Account{ID: "acct-1", Handle: "alpha"})
	registry.PutAccount(watch.Account{ID: "acct-2", Handle: "beta"})

	feed := &stubFeed{
		errs: map[string]error{"acct-1": errors.New("boom")},
		posts: map[string][]classify.Post{
			"acct-2": {{ID: "p9", AuthorID: "acct-2", Text: "hello"}},
		},
	}
	monitor, dispatcher := newTestMonitor(t, feed, registry, &memoryAlertStore{}, nil)

	require.NoError(t, monitor.PollCycle(context.Background(), time.Now()))

	assert.Equal(t, []string{"acct-1", "acct-2"}, feed.calls)
	require.Len(t, dispatcher.candidates, 1)
	assert.Equal(t, "p9", dispatcher.candidates[0].EventID)
}

func TestHandleTransactionsDispatchesWithSignature(t *testing.T) {
	registry := watch.NewRegistry()
	alerts := &memoryAlertStore{}
	monitor, dispatcher := newTestMonitor(t, &stubFeed{}, registry, alerts, nil)

	txs := []classify.Transaction{
		{Account: "wallet-1", Type: "TRANSFER", Signature: "sig-1"},
	}
	require.NoError(t, monitor.HandleTransactions(context.Background(), txs))

	require.Len(t, dispatcher.candidates, 1)
	assert.Equal(t, classify.KindTransfer, dispatcher.candidates[0].Kind)

	require.Len(t, alerts.records, 1)
	require.NotNil(t, alerts.records[0].TxSignature)
	assert.Equal(t, "sig-1", *alerts.records[0].TxSignature)
}

func TestEmitSurvivesAuditFailure(t *testing.T) {
	registry := watch.NewRegistry()
	registry.PutAccount(watch.Account{ID: "acct-1", Handle: "alpha"})

	feed := &stubFeed{posts: map[string][]classify.Post{
		"acct-1": {{ID: "p1", AuthorID: "acct-1", Text: "gm"}},
	}}
	monitor, dispatcher := newTestMonitor(t, feed, registry, &memoryAlertStore{fail: true}, nil)

	require.NoError(t, monitor.PollCycle(context.Background(), time.Now()))
	assert.Len(t, dispatcher.candidates, 1)
}
