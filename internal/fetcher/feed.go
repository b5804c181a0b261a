package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/ratelimit"
)

const defaultPageLimit = 20

// FeedOptions parameterise the social feed client.
type FeedOptions struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	UserAgent   string
	PageLimit   int
}

// Feed fetches posts from the social provider's REST API.
type Feed struct {
	opts    FeedOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewFeed constructs a feed client.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}

	return &Feed{
		opts:    opts,
		logger:  logger.With().Str("component", "feed_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchPosts retrieves posts for an account newer than sinceID, oldest first.
func (f *Feed) FetchPosts(ctx context.Context, accountID, sinceID string) ([]classify.Post, error) {
	if f.baseURL == "" {
		return nil, fmt.Errorf("feed base url not configured")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account id required")
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(f.opts.PageLimit))
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}

	endpoint := fmt.Sprintf("%s/users/%s/posts?%s", f.baseURL, url.PathEscape(accountID), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.opts.BearerToken)
	}
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseFeedError(resp, payload)
	}

	var body feedResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	posts := make([]classify.Post, 0, len(body.Data))
	for _, item := range body.Data {
		author := item.AuthorID
		if author == "" {
			author = accountID
		}
		posts = append(posts, classify.Post{ID: item.ID, AuthorID: author, Text: item.Text})
	}

	// Provider returns newest first; the monitor wants chronological order.
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}

	return posts, nil
}

type feedResponse struct {
	Data []struct {
		ID       string `json:"id"`
		AuthorID string `json:"author_id"`
		Text     string `json:"text"`
	} `json:"data"`
	Meta struct {
		NewestID string `json:"newest_id"`
	} `json:"meta"`
}

type feedErrorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// parseFeedError converts a non-200 into a typed provider error, carrying
// the reset hint from the rate-limit header when present.
func parseFeedError(resp *http.Response, payload []byte) error {
	perr := &ratelimit.ProviderError{Status: resp.StatusCode}

	if raw := resp.Header.Get("x-rate-limit-reset"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			perr.ResetAt = time.Unix(epoch, 0).UTC()
		}
	}

	var body feedErrorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		if len(body.Errors) > 0 {
			perr.Code = body.Errors[0].Code
			perr.Message = body.Errors[0].Message
		} else if body.Detail != "" {
			perr.Message = body.Detail
		} else if body.Title != "" {
			perr.Message = body.Title
		}
	}
	if perr.Message == "" && len(payload) > 0 {
		perr.Message = strings.TrimSpace(string(payload))
	}

	return perr
}

var _ FeedFetcher = (*Feed)(nil)
