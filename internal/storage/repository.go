package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertAccountSQL = `INSERT INTO watched_accounts (
        id,
        handle,
        priority,
        last_post_id
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (id) DO UPDATE
    SET
        handle       = EXCLUDED.handle,
        priority     = EXCLUDED.priority,
        last_post_id = EXCLUDED.last_post_id;`

	updateAccountCursorSQL = `UPDATE watched_accounts
    SET last_post_id = $2
    WHERE id = $1;`

	deleteAccountSQL = `DELETE FROM watched_accounts WHERE id = $1;`

	listAccountsSQL = `SELECT
        id,
        handle,
        priority,
        last_post_id,
        created_at
    FROM watched_accounts
    ORDER BY id;`

	upsertWalletSQL = `INSERT INTO watched_wallets (
        address,
        label,
        subscriber_id
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (address) DO UPDATE
    SET
        label         = EXCLUDED.label,
        subscriber_id = EXCLUDED.subscriber_id;`

	deleteWalletSQL = `DELETE FROM watched_wallets WHERE address = $1;`

	listWalletsSQL = `SELECT
        address,
        label,
        subscriber_id,
        created_at
    FROM watched_wallets
    ORDER BY address;`

	upsertSubscriberSQL = `INSERT INTO sms_subscribers (
        id,
        phone,
        active
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (id) DO UPDATE
    SET
        phone  = EXCLUDED.phone,
        active = EXCLUDED.active;`

	deleteSubscriberSQL = `DELETE FROM sms_subscribers WHERE id = $1;`

	listSubscribersSQL = `SELECT
        id,
        phone,
        active,
        created_at
    FROM sms_subscribers
    ORDER BY id;`

	insertAlertSQL = `INSERT INTO alerts (
        id,
        kind,
        source_id,
        event_id,
        priority,
        on_topic,
        usd_value,
        tx_signature
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listRecentAlertsSQL = `SELECT
        id,
        kind,
        source_id,
        event_id,
        priority,
        on_topic,
        usd_value,
        tx_signature,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT
        id,
        kind,
        source_id,
        event_id,
        priority,
        on_topic,
        usd_value,
        tx_signature,
        created_at
    FROM alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// WatchStore defines persistence for monitored sources and subscribers.
type WatchStore interface {
	UpsertAccount(ctx context.Context, account WatchedAccount) error
	UpdateAccountCursor(ctx context.Context, id, lastPostID string) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]WatchedAccount, error)
	UpsertWallet(ctx context.Context, wallet WatchedWallet) error
	DeleteWallet(ctx context.Context, address string) error
	ListWallets(ctx context.Context) ([]WatchedWallet, error)
	UpsertSubscriber(ctx context.Context, subscriber SMSSubscriber) error
	DeleteSubscriber(ctx context.Context, id string) error
	ListSubscribers(ctx context.Context) ([]SMSSubscriber, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) error
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to the watchlist and the alert audit trail.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertAccount persists or updates a watched account.
func (s *Store) UpsertAccount(ctx context.Context, account WatchedAccount) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var cursor interface{}
	if account.LastPostID != nil {
		cursor = *account.LastPostID
	}

	if _, execErr := pool.Exec(ctx, upsertAccountSQL, account.ID, account.Handle, account.Priority, cursor); execErr != nil {
		return fmt.Errorf("upsert account: %w", execErr)
	}
	return nil
}

// UpdateAccountCursor records the last-seen post id for an account.
func (s *Store) UpdateAccountCursor(ctx context.Context, id, lastPostID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateAccountCursorSQL, id, lastPostID)
	if execErr != nil {
		return fmt.Errorf("update account cursor: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteAccount drops a watched account.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAccountSQL, id); execErr != nil {
		return fmt.Errorf("delete account: %w", execErr)
	}
	return nil
}

// ListAccounts lists all watched accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]WatchedAccount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAccountsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list accounts: %w", queryErr)
	}
	defer rows.Close()

	accounts := make([]WatchedAccount, 0)
	for rows.Next() {
		var (
			account WatchedAccount
			cursor  sql.NullString
		)
		if err := rows.Scan(&account.ID, &account.Handle, &account.Priority, &cursor, &account.CreatedAt); err != nil {
			return nil, err
		}
		if cursor.Valid {
			value := cursor.String
			account.LastPostID = &value
		}
		accounts = append(accounts, account)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return accounts, nil
}

// UpsertWallet persists or updates a watched wallet.
func (s *Store) UpsertWallet(ctx context.Context, wallet WatchedWallet) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var subscriber interface{}
	if wallet.SubscriberID != nil {
		subscriber = *wallet.SubscriberID
	}

	if _, execErr := pool.Exec(ctx, upsertWalletSQL, wallet.Address, wallet.Label, subscriber); execErr != nil {
		return fmt.Errorf("upsert wallet: %w", execErr)
	}
	return nil
}

// DeleteWallet drops a watched wallet.
func (s *Store) DeleteWallet(ctx context.Context, address string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteWalletSQL, address); execErr != nil {
		return fmt.Errorf("delete wallet: %w", execErr)
	}
	return nil
}

// ListWallets lists all watched wallets ordered by address.
func (s *Store) ListWallets(ctx context.Context) ([]WatchedWallet, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWalletsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list wallets: %w", queryErr)
	}
	defer rows.Close()

	wallets := make([]WatchedWallet, 0)
	for rows.Next() {
		var (
			wallet     WatchedWallet
			subscriber sql.NullString
		)
		if err := rows.Scan(&wallet.Address, &wallet.Label, &subscriber, &wallet.CreatedAt); err != nil {
			return nil, err
		}
		if subscriber.Valid {
			value := subscriber.String
			wallet.SubscriberID = &value
		}
		wallets = append(wallets, wallet)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return wallets, nil
}

// UpsertSubscriber persists or updates an SMS subscriber.
func (s *Store) UpsertSubscriber(ctx context.Context, subscriber SMSSubscriber) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertSubscriberSQL, subscriber.ID, subscriber.Phone, subscriber.Active); execErr != nil {
		return fmt.Errorf("upsert subscriber: %w", execErr)
	}
	return nil
}

// DeleteSubscriber drops an SMS subscriber.
func (s *Store) DeleteSubscriber(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSubscriberSQL, id); execErr != nil {
		return fmt.Errorf("delete subscriber: %w", execErr)
	}
	return nil
}

// ListSubscribers lists all subscribers ordered by id.
func (s *Store) ListSubscribers(ctx context.Context) ([]SMSSubscriber, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscribersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list subscribers: %w", queryErr)
	}
	defer rows.Close()

	subscribers := make([]SMSSubscriber, 0)
	for rows.Next() {
		var subscriber SMSSubscriber
		if err := rows.Scan(&subscriber.ID, &subscriber.Phone, &subscriber.Active, &subscriber.CreatedAt); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, subscriber)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subscribers, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var signature interface{}
	if alert.TxSignature != nil {
		signature = *alert.TxSignature
	}

	if _, execErr := pool.Exec(ctx, insertAlertSQL,
		alert.ID,
		alert.Kind,
		alert.SourceID,
		alert.EventID,
		alert.Priority,
		alert.OnTopic,
		alert.USDValue.String(),
		signature,
	); execErr != nil {
		return fmt.Errorf("insert alert: %w", execErr)
	}
	return nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists alerts within a time window.
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, 0)
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectAlerts(rows pgx.Rows, sizeHint int) ([]AlertRecord, error) {
	alerts := make([]AlertRecord, 0, sizeHint)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		alert     AlertRecord
		usdStr    string
		signature sql.NullString
	)

	if err := rows.Scan(
		&alert.ID,
		&alert.Kind,
		&alert.SourceID,
		&alert.EventID,
		&alert.Priority,
		&alert.OnTopic,
		&usdStr,
		&signature,
		&alert.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	usd, err := decimal.NewFromString(usdStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse usd value: %w", err)
	}
	alert.USDValue = usd

	if signature.Valid {
		value := signature.String
		alert.TxSignature = &value
	}

	return alert, nil
}

var _ WatchStore = (*Store)(nil)
var _ AlertStore = (*Store)(nil)
