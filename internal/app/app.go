package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/alerting"
	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/config"
	"wallet-activity-alerts/internal/fetcher"
	"wallet-activity-alerts/internal/ingest"
	"wallet-activity-alerts/internal/metrics"
	"wallet-activity-alerts/internal/poller"
	"wallet-activity-alerts/internal/ratelimit"
	"wallet-activity-alerts/internal/route"
	"wallet-activity-alerts/internal/service"
	"wallet-activity-alerts/internal/storage"
	"wallet-activity-alerts/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLimiter() *ratelimit.Limiter {
	return ratelimit.New(a.Config.LimiterOptions(), a.Logger)
}

func (a *App) newFeed() fetcher.FeedFetcher {
	return fetcher.NewFeed(fetcher.FeedOptions{
		BaseURL:     a.Config.Feed.BaseURL,
		BearerToken: a.Config.Feed.BearerToken,
		Timeout:     a.Config.Feed.RequestTimeout,
		UserAgent:   a.Config.Feed.UserAgent,
		PageLimit:   a.Config.Feed.PageLimit,
	}, a.Logger)
}

func (a *App) newDex() *fetcher.Dex {
	return fetcher.NewDex(fetcher.DexOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
}

func (a *App) newClassifier(limiter *ratelimit.Limiter) *classify.Classifier {
	dex := a.newDex()
	return classify.New(
		service.LimitTokenResolver(limiter, dex),
		service.LimitMarketData(limiter, dex),
		a.Logger,
	)
}

func (a *App) newChannelSinks() map[route.ChannelKind]route.ChannelSink {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Discord.Enabled {
		return nil
	}

	discord := a.Config.Alerting.Discord
	sinks := make(map[route.ChannelKind]route.ChannelSink, len(discord.Channels))
	for name, webhookURL := range discord.Channels {
		if webhookURL == "" {
			continue
		}
		sinks[route.ChannelKind(name)] = alerting.NewDiscordNotifier(name, webhookURL, discord.Timeout, a.Logger)
	}
	return sinks
}

func (a *App) newSMSSink() route.SMSSink {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.SMS.Enabled {
		return nil
	}
	sms := a.Config.Alerting.SMS
	return alerting.NewSMSNotifier(sms.AccountSID, sms.AuthToken, sms.FromNumber, sms.APIBase, 10*time.Second, a.Logger)
}

func (a *App) newRouter(registry *watch.Registry) *route.Router {
	return route.New(a.newChannelSinks(), a.newSMSSink(), registry, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// loadRegistry hydrates the in-memory registry from the watchlist tables.
func (a *App) loadRegistry(ctx context.Context, store storage.WatchStore) (*watch.Registry, error) {
	registry := watch.NewRegistry()
	if store == nil {
		return registry, nil
	}

	storedAccounts, err := store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	storedWallets, err := store.ListWallets(ctx)
	if err != nil {
		return nil, err
	}
	storedSubscribers, err := store.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]watch.Account, 0, len(storedAccounts))
	for _, account := range storedAccounts {
		cursor := ""
		if account.LastPostID != nil {
			cursor = *account.LastPostID
		}
		accounts = append(accounts, watch.Account{
			ID:         account.ID,
			Handle:     account.Handle,
			Priority:   account.Priority,
			LastPostID: cursor,
		})
	}

	wallets := make([]watch.Wallet, 0, len(storedWallets))
	for _, wallet := range storedWallets {
		subscriber := ""
		if wallet.SubscriberID != nil {
			subscriber = *wallet.SubscriberID
		}
		wallets = append(wallets, watch.Wallet{
			Address:      wallet.Address,
			Label:        wallet.Label,
			SubscriberID: subscriber,
		})
	}

	subscribers := make([]watch.Subscriber, 0, len(storedSubscribers))
	for _, subscriber := range storedSubscribers {
		subscribers = append(subscribers, watch.Subscriber{
			ID:     subscriber.ID,
			Phone:  subscriber.Phone,
			Active: subscriber.Active,
		})
	}

	registry.Load(accounts, wallets, subscribers)
	return registry, nil
}

// Run executes the long-running monitoring service: feed poller, webhook
// receiver, and the limiter event consumer.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
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
	collector := metrics.NewCollector(a.Logger)
	monitor := service.New(service.Options{
		Limiter:    limiter,
		Feed:       a.newFeed(),
		Classifier: a.newClassifier(limiter),
		Dispatcher: a.newRouter(registry),
		Registry:   registry,
		WatchStore: watchStore,
		AlertStore: alertStore,
		Counter:    collector,
	}, a.Logger)

	poll := poller.New(poller.Options{
		Interval:     a.Config.Poller.Interval,
		AlignCycles:  a.Config.Poller.AlignCycles,
		StartupDelay: a.Config.Poller.StartupDelay,
	}, a.Logger)

	receiver := ingest.NewWebhook(ingest.WebhookOptions{
		ListenAddr: a.Config.Webhook.ListenAddr,
		AuthToken:  a.Config.Webhook.AuthToken,
	}, monitor.HandleTransaction, collector.Handler(), a.Logger)

	go collector.Run(ctx, limiter.Events())

	errCh := make(chan error, 2)
	go func() { errCh <- receiver.Run(ctx) }()
	go func() { errCh <- poll.Run(ctx, monitor.PollCycle) }()

	a.Logger.Info().Msg("starting monitoring service")
	err = <-errCh
	cancel()
	// Let the second runner observe cancellation before returning.
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting the alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
