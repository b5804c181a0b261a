package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/ratelimit"
)

const (
	dexTokenPath       = "/latest/dex/tokens/"
	dexNativePricePath = "/latest/dex/native-price"
)

// DexOptions parameterise the market data client.
type DexOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Dex resolves token addresses and supplies market stats from a
// DEX-indexing API. It implements both classifier boundary interfaces.
type Dex struct {
	opts    DexOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewDex constructs a market data client.
func NewDex(opts DexOptions, logger zerolog.Logger) *Dex {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dex{
		opts:    opts,
		logger:  logger.With().Str("component", "dex_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// ResolveToken confirms an address against the token index. Unknown
// addresses return (nil, nil); that is the expected outcome for most of the
// permissive extraction candidates.
func (d *Dex) ResolveToken(ctx context.Context, address string) (*classify.TokenInfo, error) {
	body, status, err := d.get(ctx, dexTokenPath+url.PathEscape(address))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, dexError(status, body)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return nil, nil
	}

	base := payload.Pairs[0].BaseToken
	return &classify.TokenInfo{Mint: base.Address, Name: base.Name, Symbol: base.Symbol}, nil
}

// NativePriceUSD returns the current reference price of the native asset.
func (d *Dex) NativePriceUSD(ctx context.Context) (decimal.Decimal, error) {
	body, status, err := d.get(ctx, dexNativePricePath)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if status != http.StatusOK {
		return decimal.Decimal{}, dexError(status, body)
	}

	var payload struct {
		PriceUSD string `json:"priceUsd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode native price: %w", err)
	}

	price, err := decimal.NewFromString(payload.PriceUSD)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse native price: %w", err)
	}
	if price.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("native price returned zero")
	}
	return price, nil
}

// TokenStats fetches live market metrics for one mint.
func (d *Dex) TokenStats(ctx context.Context, mint string) (*classify.Enrichment, error) {
	body, status, err := d.get(ctx, dexTokenPath+url.PathEscape(mint))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, dexError(status, body)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token stats: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs for mint %s", mint)
	}

	pair := payload.Pairs[0]
	stats := &classify.Enrichment{
		Holders:           pair.Holders,
		PriceChange5mPct:  pair.PriceChange.M5,
		PriceChange24hPct: pair.PriceChange.H24,
		Buys24h:           pair.Txns.H24.Buys,
		Sells24h:          pair.Txns.H24.Sells,
		UniqueWallets24h:  pair.UniqueWallets24h,
	}
	if pair.MarketCap != "" {
		if v, err := decimal.NewFromString(pair.MarketCap); err == nil {
			stats.MarketCapUSD = v
		}
	}
	if pair.Liquidity.USD != "" {
		if v, err := decimal.NewFromString(pair.Liquidity.USD); err == nil {
			stats.LiquidityUSD = v
		}
	}
	if pair.Txns.H24.Sells > 0 {
		stats.BuySellRatio = float64(pair.Txns.H24.Buys) / float64(pair.Txns.H24.Sells)
	}

	return stats, nil
}

func (d *Dex) get(ctx context.Context, path string) ([]byte, int, error) {
	if d.baseURL == "" {
		return nil, 0, fmt.Errorf("dex base url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

type tokenResponse struct {
	Pairs []struct {
		BaseToken struct {
			Address string `json:"address"`
			Name    string `json:"name"`
			Symbol  string `json:"symbol"`
		} `json:"baseToken"`
		MarketCap   string `json:"marketCap"`
		Liquidity   struct {
			USD string `json:"usd"`
		} `json:"liquidity"`
		PriceChange struct {
			M5  float64 `json:"m5"`
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		Txns struct {
			H24 struct {
				Buys  int `json:"buys"`
				Sells int `json:"sells"`
			} `json:"h24"`
		} `json:"txns"`
		Holders          int `json:"holders"`
		UniqueWallets24h int `json:"uniqueWallets24h"`
	} `json:"pairs"`
}

func dexError(status int, payload []byte) error {
	perr := &ratelimit.ProviderError{Status: status}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			perr.Message = body.Message
		} else if body.Error != "" {
			perr.Message = body.Error
		}
	}
	if perr.Message == "" && len(payload) > 0 {
		perr.Message = strings.TrimSpace(string(payload))
	}

	return perr
}

var _ classify.TokenResolver = (*Dex)(nil)
var _ classify.MarketDataSource = (*Dex)(nil)
