package classify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Kind buckets a candidate for routing.
type Kind string

const (
	// KindPost is a plain social post from a watched account.
	KindPost Kind = "post"
	// KindTokenMention is a social post confirmed to reference a known token.
	KindTokenMention Kind = "token-mention"
	// KindTransfer is on-chain activity for a watched wallet.
	KindTransfer Kind = "transfer"
)

// Candidate is a normalized, not-yet-routed representation of a noteworthy
// event. Constructed per raw event and consumed exactly once by the router.
type Candidate struct {
	ID          string
	Kind        Kind
	SourceID    string
	EventID     string
	Priority    bool
	OnTopic     bool
	Text        string
	Addresses   []string
	USDValue    decimal.Decimal
	TxSignature string
	Enrichment  *Enrichment
}

// Enrichment carries live market metrics for the primary token of a
// transfer. Any field may be zero when the lookup degraded.
type Enrichment struct {
	MarketCapUSD     decimal.Decimal
	LiquidityUSD     decimal.Decimal
	Holders          int
	PriceChange5mPct float64
	PriceChange24hPct float64
	Buys24h          int
	Sells24h         int
	BuySellRatio     float64
	UniqueWallets24h int
}

// Post is a raw social post as delivered by the feed client.
type Post struct {
	ID       string
	AuthorID string
	Text     string
}

// TokenTransfer mirrors one token movement inside a webhook transaction
// record.
type TokenTransfer struct {
	Mint        string   `json:"mint"`
	TokenName   string   `json:"tokenName"`
	TokenSymbol string   `json:"tokenSymbol"`
	TokenAmount float64  `json:"tokenAmount"`
	TokenPrice  *float64 `json:"tokenPrice,omitempty"`
}

// NativeTransfer mirrors one native-asset movement inside a webhook
// transaction record. Amounts are in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// Transaction is one record of the webhook payload.
type Transaction struct {
	Account         string           `json:"account"`
	Type            string           `json:"type"`
	Amount          int64            `json:"amount,omitempty"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers,omitempty"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers,omitempty"`
	Signature       string           `json:"signature,omitempty"`
}

// TokenInfo identifies a resolved token.
type TokenInfo struct {
	Mint   string
	Name   string
	Symbol string
}

// TokenResolver confirms candidate addresses against a token index. A nil
// TokenInfo with nil error means the address is not a known token.
type TokenResolver interface {
	ResolveToken(ctx context.Context, address string) (*TokenInfo, error)
}

// MarketDataSource supplies the native reference price and per-token market
// stats used for enrichment.
type MarketDataSource interface {
	NativePriceUSD(ctx context.Context) (decimal.Decimal, error)
	TokenStats(ctx context.Context, mint string) (*Enrichment, error)
}
