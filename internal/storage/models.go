package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchedAccount is a persisted social account under observation.
type WatchedAccount struct {
	ID         string
	Handle     string
	Priority   bool
	LastPostID *string
	CreatedAt  time.Time
}

// WatchedWallet is a persisted on-chain address under observation.
type WatchedWallet struct {
	Address      string
	Label        string
	SubscriberID *string
	CreatedAt    time.Time
}

// SMSSubscriber is a persisted SMS recipient.
type SMSSubscriber struct {
	ID        string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// AlertRecord captures a routed alert for auditing and export.
type AlertRecord struct {
	ID          string
	Kind        string
	SourceID    string
	EventID     string
	Priority    bool
	OnTopic     bool
	USDValue    decimal.Decimal
	TxSignature *string
	CreatedAt   time.Time
}
