package classify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	minAddressLen = 30
	maxAddressLen = 50
)

// Classifier normalizes raw posts and transactions into alert candidates.
// It owns the processed-event set; the set grows for the process lifetime,
// which is accepted for this scope.
type Classifier struct {
	tokens    TokenResolver
	market    MarketDataSource
	logger    zerolog.Logger
	processed map[string]struct{}
}

// New constructs a Classifier with a fresh processed-event set.
func New(tokens TokenResolver, market MarketDataSource, logger zerolog.Logger) *Classifier {
	return &Classifier{
		tokens:    tokens,
		market:    market,
		logger:    logger.With().Str("component", "classifier").Logger(),
		processed: make(map[string]struct{}),
	}
}

// Seen reports whether the event id has already been processed.
func (c *Classifier) Seen(eventID string) bool {
	_, ok := c.processed[eventID]
	return ok
}

// ClassifyPost builds a candidate from a raw post. Posts are processed once:
// the id is recorded before classification, so a post is never re-evaluated
// even if a lookup fails mid-way. Returns nil for duplicates.
func (c *Classifier) ClassifyPost(ctx context.Context, post Post, priority bool) *Candidate {
	if _, done := c.processed[post.ID]; done {
		c.logger.Debug().Str("post_id", post.ID).Msg("post already processed, skipping")
		return nil
	}
	c.processed[post.ID] = struct{}{}

	candidate := &Candidate{
		ID:       uuid.NewString(),
		Kind:     KindPost,
		SourceID: post.AuthorID,
		EventID:  post.ID,
		Priority: priority,
		Text:     post.Text,
	}

	for _, addr := range extractAddresses(post.Text) {
		info, err := c.tokens.ResolveToken(ctx, addr)
		if err != nil {
			// Lookup failures degrade the candidate, never drop it.
			c.logger.Warn().Err(err).Str("address", addr).Msg("token lookup failed")
			continue
		}
		if info == nil {
			continue
		}
		candidate.OnTopic = true
		candidate.Addresses = append(candidate.Addresses, info.Mint)
	}

	if candidate.OnTopic {
		candidate.Kind = KindTokenMention
	}

	return candidate
}

// extractAddresses scans free text for possible chain addresses. Any
// whitespace-delimited run of 30 to 50 characters counts. This is
// intentionally permissive; unresolvable candidates are filtered by the
// token lookup downstream.
func extractAddresses(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		if len(field) >= minAddressLen && len(field) <= maxAddressLen {
			out = append(out, field)
		}
	}
	return out
}
