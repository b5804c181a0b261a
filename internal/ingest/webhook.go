package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/classify"
)

// TxHandler consumes one transaction record from the webhook stream.
type TxHandler func(ctx context.Context, tx classify.Transaction)

// WebhookOptions configure the receiver.
type WebhookOptions struct {
	ListenAddr string
	AuthToken  string
}

// Webhook is the push-based ingestion source: an HTTP server accepting
// ordered transaction-record lists from the chain indexer.
type Webhook struct {
	opts    WebhookOptions
	handler TxHandler
	logger  zerolog.Logger
	metrics http.Handler
}

// NewWebhook constructs a webhook receiver. metrics may be nil.
func NewWebhook(opts WebhookOptions, handler TxHandler, metrics http.Handler, logger zerolog.Logger) *Webhook {
	return &Webhook{
		opts:    opts,
		handler: handler,
		logger:  logger.With().Str("component", "webhook").Logger(),
		metrics: metrics,
	}
}

// Handler builds the HTTP routes.
func (w *Webhook) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	if w.metrics != nil {
		r.Handle("/metrics", w.metrics)
	}
	r.Post("/webhook/transactions", w.handleTransactions)

	return r
}

// Run serves until ctx is cancelled.
func (w *Webhook) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              w.opts.ListenAddr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	w.logger.Info().Str("addr", w.opts.ListenAddr).Msg("webhook receiver listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (w *Webhook) handleTransactions(rw http.ResponseWriter, req *http.Request) {
	if w.opts.AuthToken != "" && req.Header.Get("Authorization") != w.opts.AuthToken {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload []classify.Transaction
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		w.logger.Warn().Err(err).Msg("rejecting malformed webhook payload")
		http.Error(rw, "invalid payload", http.StatusBadRequest)
		return
	}

	// Records are handed over in payload order before the 202 is written, so
	// the indexer's retry semantics stay simple.
	for _, tx := range payload {
		w.handler(req.Context(), tx)
	}

	rw.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(rw).Encode(map[string]int{"accepted": len(payload)})
}
