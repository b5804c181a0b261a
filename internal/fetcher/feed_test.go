package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/ratelimit"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFeedFetchMissingConfig(t *testing.T) {
	f := NewFeed(FeedOptions{}, noopLogger())
	if _, err := f.FetchPosts(context.Background(), "acct", ""); err == nil {
		t.Fatal("未配置 base url 时应返回错误")
	}

	f = NewFeed(FeedOptions{BaseURL: "http://localhost"}, noopLogger())
	if _, err := f.FetchPosts(context.Background(), "", ""); err == nil {
		t.Fatal("缺少 account id 应报错")
	}
}

func TestFeedFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("Authorization 头不正确: %q", got)
		}
		if got := r.URL.Query().Get("since_id"); got != "40" {
			t.Fatalf("since_id 应为 40, 实际 %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "42", "author_id": "acct", "text": "second"},
				{"id": "41", "author_id": "acct", "text": "first"},
			},
			"meta": map[string]string{"newest_id": "42"},
		})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL, BearerToken: "token-1", Timeout: time.Second}, noopLogger())
	posts, err := f.FetchPosts(context.Background(), "acct", "40")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("期望 2 条帖子, 实际 %d", len(posts))
	}
	if posts[0].ID != "41" || posts[1].ID != "42" {
		t.Fatalf("帖子应按时间正序返回: %#v", posts)
	}
}

func TestFeedFetchRateLimited(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"code": 88, "message": "Rate limit exceeded"}},
		})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := f.FetchPosts(context.Background(), "acct", "")
	if err == nil {
		t.Fatal("HTTP 429 应返回错误")
	}

	var perr *ratelimit.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("应返回 ProviderError, 实际 %T", err)
	}
	if perr.Status != http.StatusTooManyRequests || perr.Code != 88 {
		t.Fatalf("错误应携带 429 与 code 88: %#v", perr)
	}
	if perr.ResetAt.Unix() != reset {
		t.Fatalf("reset 提示不正确: %v", perr.ResetAt)
	}
}
