package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	known map[string]string // address -> mint
	err   error
	calls int
}

func (s *stubResolver) ResolveToken(ctx context.Context, address string) (*TokenInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	mint, ok := s.known[address]
	if !ok {
		return nil, nil
	}
	return &TokenInfo{Mint: mint, Symbol: "TKN"}, nil
}

type stubMarket struct {
	native    decimal.Decimal
	nativeErr error
	stats     *Enrichment
	statsErr  error
}

func (s *stubMarket) NativePriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return s.native, s.nativeErr
}

func (s *stubMarket) TokenStats(ctx context.Context, mint string) (*Enrichment, error) {
	return s.stats, s.statsErr
}

func newTestClassifier(tokens TokenResolver, market MarketDataSource) *Classifier {
	if tokens == nil {
		tokens = &stubResolver{}
	}
	if market == nil {
		market = &stubMarket{}
	}
	return New(tokens, market, zerolog.Nop())
}

func TestClassifyPostProcessedOnce(t *testing.T) {
	c := newTestClassifier(nil, nil)
	post := Post{ID: "42", AuthorID: "acct-1", Text: "gm"}

	first := c.ClassifyPost(context.Background(), post, false)
	require.NotNil(t, first)

	second := c.ClassifyPost(context.Background(), post, false)
	assert.Nil(t, second, "resubmitted post must not be reclassified")
	assert.True(t, c.Seen("42"))
}

func TestClassifyPostPriorityFlag(t *testing.T) {
	c := newTestClassifier(nil, nil)

	candidate := c.ClassifyPost(context.Background(), Post{ID: "1", AuthorID: "vip", Text: "launch soon"}, true)
	require.NotNil(t, candidate)
	assert.True(t, candidate.Priority)
	assert.Equal(t, KindPost, candidate.Kind)
	assert.Equal(t, "vip", candidate.SourceID)
}

func TestClassifyPostOnTopic(t *testing.T) {
	addr := strings.Repeat("A", 44)
	resolver := &stubResolver{known: map[string]string{addr: "mint-1"}}
	c := newTestClassifier(resolver, nil)

	candidate := c.ClassifyPost(context.Background(), Post{ID: "2", AuthorID: "acct", Text: "check " + addr + " out"}, false)
	require.NotNil(t, candidate)
	assert.True(t, candidate.OnTopic)
	assert.Equal(t, KindTokenMention, candidate.Kind)
	assert.Equal(t, []string{"mint-1"}, candidate.Addresses)
}

func TestClassifyPostLookupFailureDegrades(t *testing.T) {
	addr := strings.Repeat("B", 40)
	resolver := &stubResolver{err: errors.New("index offline")}
	c := newTestClassifier(resolver, nil)

	candidate := c.ClassifyPost(context.Background(), Post{ID: "3", AuthorID: "acct", Text: addr}, false)
	require.NotNil(t, candidate, "lookup failure must not drop the candidate")
	assert.False(t, candidate.OnTopic)
	assert.True(t, c.Seen("3"), "post is marked processed even when classification degrades")
}

func TestExtractAddressesLengthBounds(t *testing.T) {
	tooShort := strings.Repeat("x", 29)
	atMin := strings.Repeat("y", 30)
	atMax := strings.Repeat("z", 50)
	tooLong := strings.Repeat("w", 51)

	got := extractAddresses(strings.Join([]string{"hello", tooShort, atMin, atMax, tooLong}, " "))
	assert.Equal(t, []string{atMin, atMax}, got)

	assert.Empty(t, extractAddresses(""))
	assert.Empty(t, extractAddresses("just ordinary words here"))
}
