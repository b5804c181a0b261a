package service

import (
	"context"

	"github.com/shopspring/decimal"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/config"
	"wallet-activity-alerts/internal/ratelimit"
)

// LimitTokenResolver funnels token lookups through the dex lookup quota.
func LimitTokenResolver(limiter *ratelimit.Limiter, inner classify.TokenResolver) classify.TokenResolver {
	return &limitedTokens{limiter: limiter, inner: inner}
}

// LimitMarketData funnels market data calls through the dex lookup quota.
func LimitMarketData(limiter *ratelimit.Limiter, inner classify.MarketDataSource) classify.MarketDataSource {
	return &limitedMarket{limiter: limiter, inner: inner}
}

type limitedTokens struct {
	limiter *ratelimit.Limiter
	inner   classify.TokenResolver
}

func (l *limitedTokens) ResolveToken(ctx context.Context, address string) (*classify.TokenInfo, error) {
	var info *classify.TokenInfo
	err := l.limiter.Do(ctx, config.EndpointTokenLookup, func(ctx context.Context) error {
		resolved, resolveErr := l.inner.ResolveToken(ctx, address)
		if resolveErr != nil {
			return resolveErr
		}
		info = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

type limitedMarket struct {
	limiter *ratelimit.Limiter
	inner   classify.MarketDataSource
}

func (l *limitedMarket) NativePriceUSD(ctx context.Context) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := l.limiter.Do(ctx, config.EndpointTokenLookup, func(ctx context.Context) error {
		fetched, fetchErr := l.inner.NativePriceUSD(ctx)
		if fetchErr != nil {
			return fetchErr
		}
		price = fetched
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

func (l *limitedMarket) TokenStats(ctx context.Context, mint string) (*classify.Enrichment, error) {
	var stats *classify.Enrichment
	err := l.limiter.Do(ctx, config.EndpointTokenLookup, func(ctx context.Context) error {
		fetched, fetchErr := l.inner.TokenStats(ctx, mint)
		if fetchErr != nil {
			return fetchErr
		}
		stats = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

var _ classify.TokenResolver = (*limitedTokens)(nil)
var _ classify.MarketDataSource = (*limitedMarket)(nil)
