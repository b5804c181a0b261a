package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-activity-alerts/internal/classify"
)

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDeliversRecordsInOrder(t *testing.T) {
	var seen []string
	w := NewWebhook(WebhookOptions{}, func(ctx context.Context, tx classify.Transaction) {
		seen = append(seen, tx.Signature)
	}, nil, zerolog.Nop())

	payload := []classify.Transaction{
		{Account: "wallet-1", Signature: "sig-1"},
		{Account: "wallet-2", Signature: "sig-2"},
	}

	rec := postJSON(t, w.Handler(), "/webhook/transactions", payload, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"sig-1", "sig-2"}, seen)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["accepted"])
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	called := false
	w := NewWebhook(WebhookOptions{}, func(ctx context.Context, tx classify.Transaction) {
		called = true
	}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/webhook/transactions", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestWebhookAuthToken(t *testing.T) {
	w := NewWebhook(WebhookOptions{AuthToken: "secret"}, func(ctx context.Context, tx classify.Transaction) {}, nil, zerolog.Nop())

	rec := postJSON(t, w.Handler(), "/webhook/transactions", []classify.Transaction{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, w.Handler(), "/webhook/transactions", []classify.Transaction{}, map[string]string{"Authorization": "secret"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhookHealthz(t *testing.T) {
	w := NewWebhook(WebhookOptions{}, func(ctx context.Context, tx classify.Transaction) {}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
