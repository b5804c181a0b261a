package classify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// lamportsPerSOL converts native amounts delivered by the indexer.
var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// stableSymbols lists assets whose transfers are pure noise for this
// pipeline. Matching is exact on the transfer symbol.
var stableSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// ClassifyTransaction builds a candidate from one webhook transaction
// record. Transactions touching a stablecoin never alert. A transaction
// with no transfers and no native amount still yields a zero-value
// candidate so tracked-wallet activity stays observable.
func (c *Classifier) ClassifyTransaction(ctx context.Context, tx Transaction) *Candidate {
	for _, transfer := range tx.TokenTransfers {
		if _, stable := stableSymbols[transfer.TokenSymbol]; stable {
			c.logger.Debug().
				Str("account", tx.Account).
				Str("symbol", transfer.TokenSymbol).
				Msg("stablecoin transfer, suppressing alert")
			return nil
		}
	}

	candidate := &Candidate{
		ID:          uuid.NewString(),
		Kind:        KindTransfer,
		SourceID:    tx.Account,
		EventID:     tx.Signature,
		TxSignature: tx.Signature,
		USDValue:    decimal.Zero,
	}

	if lamports := nativeLamports(tx); lamports > 0 {
		price, err := c.market.NativePriceUSD(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("native price unavailable, omitting native value")
		} else {
			native := decimal.NewFromInt(lamports).Div(lamportsPerSOL)
			candidate.USDValue = candidate.USDValue.Add(native.Mul(price))
		}
	}

	for _, transfer := range tx.TokenTransfers {
		candidate.Addresses = append(candidate.Addresses, transfer.Mint)
		if transfer.TokenPrice == nil {
			continue
		}
		amount := decimal.NewFromFloat(transfer.TokenAmount)
		price := decimal.NewFromFloat(*transfer.TokenPrice)
		candidate.USDValue = candidate.USDValue.Add(amount.Mul(price))
	}

	if len(tx.TokenTransfers) > 0 {
		c.enrich(ctx, candidate, tx.TokenTransfers[0].Mint)
	}

	return candidate
}

// nativeLamports prefers the record's top-level amount; indexers that omit
// it itemize the movement in nativeTransfers instead.
func nativeLamports(tx Transaction) int64 {
	if tx.Amount > 0 {
		return tx.Amount
	}
	var total int64
	for _, transfer := range tx.NativeTransfers {
		total += transfer.Amount
	}
	return total
}

// enrich attaches live market stats for the primary token transfer.
// Failures are absorbed; the candidate simply ships without the fields.
func (c *Classifier) enrich(ctx context.Context, candidate *Candidate, mint string) {
	stats, err := c.market.TokenStats(ctx, mint)
	if err != nil {
		c.logger.Warn().Err(err).Str("mint", mint).Msg("market enrichment unavailable")
		return
	}
	candidate.Enrichment = stats
}
