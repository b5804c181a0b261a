package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"wallet-activity-alerts/internal/storage"
)

// errNoDatabase guards the watchlist management commands.
var errNoDatabase = errors.New("database not configured; watchlist commands need database.dsn")

func (a *App) withStore(ctx context.Context, fn func(store *storage.Store) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()
	return fn(store)
}

// AddAccount registers a social account for polling.
func (a *App) AddAccount(ctx context.Context, id, handle string, priority bool) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		return store.UpsertAccount(ctx, storage.WatchedAccount{
			ID:       id,
			Handle:   handle,
			Priority: priority,
		})
	})
}

// RemoveAccount drops a watched account.
func (a *App) RemoveAccount(ctx context.Context, id string) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		return store.DeleteAccount(ctx, id)
	})
}

// ListAccounts prints the watched accounts.
func (a *App) ListAccounts(ctx context.Context) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		accounts, err := store.ListAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Fprintln(os.Stdout, "no watched accounts")
			return nil
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tHandle\tPriority\tCursor\tAdded (UTC)")
		for _, account := range accounts {
			cursor := ""
			if account.LastPostID != nil {
				cursor = *account.LastPostID
			}
			fmt.Fprintf(writer, "%s\t%s\t%t\t%s\t%s\n",
				account.ID, account.Handle, account.Priority, cursor,
				account.CreatedAt.UTC().Format(time.RFC3339))
		}
		return writer.Flush()
	})
}

// AddWallet registers an on-chain address for webhook matching. subscriberID
// may be empty for wallets watched without an SMS owner.
func (a *App) AddWallet(ctx context.Context, address, label, subscriberID string) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		wallet := storage.WatchedWallet{Address: address, Label: label}
		if subscriberID != "" {
			wallet.SubscriberID = &subscriberID
		}
		return store.UpsertWallet(ctx, wallet)
	})
}

// RemoveWallet drops a watched wallet.
func (a *App) RemoveWallet(ctx context.Context, address string) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		return store.DeleteWallet(ctx, address)
	})
}

// ListWallets prints the watched wallets.
func (a *App) ListWallets(ctx context.Context) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		wallets, err := store.ListWallets(ctx)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			fmt.Fprintln(os.Stdout, "no watched wallets")
			return nil
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Address\tLabel\tSubscriber\tAdded (UTC)")
		for _, wallet := range wallets {
			subscriber := ""
			if wallet.SubscriberID != nil {
				subscriber = *wallet.SubscriberID
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
				wallet.Address, wallet.Label, subscriber,
				wallet.CreatedAt.UTC().Format(time.RFC3339))
		}
		return writer.Flush()
	})
}

// AddSubscriber registers an SMS recipient.
func (a *App) AddSubscriber(ctx context.Context, id, phone string, active bool) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		return store.UpsertSubscriber(ctx, storage.SMSSubscriber{
			ID:     id,
			Phone:  phone,
			Active: active,
		})
	})
}

// RemoveSubscriber drops an SMS recipient.
func (a *App) RemoveSubscriber(ctx context.Context, id string) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		return store.DeleteSubscriber(ctx, id)
	})
}

// ListSubscribers prints the SMS recipients.
func (a *App) ListSubscribers(ctx context.Context) error {
	return a.withStore(ctx, func(store *storage.Store) error {
		subscribers, err := store.ListSubscribers(ctx)
		if err != nil {
			return err
		}
		if len(subscribers) == 0 {
			fmt.Fprintln(os.Stdout, "no subscribers")
			return nil
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tPhone\tActive\tAdded (UTC)")
		for _, subscriber := range subscribers {
			fmt.Fprintf(writer, "%s\t%s\t%t\t%s\n",
				subscriber.ID, subscriber.Phone, subscriber.Active,
				subscriber.CreatedAt.UTC().Format(time.RFC3339))
		}
		return writer.Flush()
	})
}
