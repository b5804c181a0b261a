package fetcher

import (
	"context"

	"wallet-activity-alerts/internal/classify"
)

// FeedFetcher retrieves new posts for one watched account, oldest first.
// sinceID is the last post already seen, empty on first fetch.
type FeedFetcher interface {
	FetchPosts(ctx context.Context, accountID, sinceID string) ([]classify.Post, error)
}
