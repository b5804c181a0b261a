package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/service"
	"wallet-activity-alerts/internal/storage"
)

// SimulateWebhook 回放一份保存的 webhook 载荷,走完整的分类与路由流程。
// The payload file holds the same JSON list the receiver accepts.
func (a *App) SimulateWebhook(ctx context.Context, payloadPath string) error {
	raw, err := os.ReadFile(payloadPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	var txs []classify.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if len(txs) == 0 {
		a.Logger.Info().Msg("payload holds no transaction records")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var watchStore storage.WatchStore
	var alertStore storage.AlertStore
	if store != nil {
		watchStore = store
		alertStore = store
	}

	registry, err := a.loadRegistry(ctx, watchStore)
	if err != nil {
		return err
	}

	limiter := a.newLimiter()
	monitor := service.New(service.Options{
		Limiter:    limiter,
		Feed:       a.newFeed(),
		Classifier: a.newClassifier(limiter),
		Dispatcher: a.newRouter(registry),
		Registry:   registry,
		WatchStore: watchStore,
		AlertStore: alertStore,
	}, a.Logger)

	a.Logger.Info().Int("records", len(txs)).Msg("replaying webhook payload")
	return monitor.HandleTransactions(ctx, txs)
}
