package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/escrow-marketplace/backend/internal/models"
)

// Converter turns USD amounts into native amounts using the source's current
// rate: native = usd * 10^decimals / rate, truncated.
type Converter struct {
	source PriceSource
}

func NewConverter(source PriceSource) *Converter {
	return &Converter{source: source}
}

func (c *Converter) ToNative(ctx context.Context, usd *big.Int) (*big.Int, error) {
	if usd == nil || usd.Sign() < 0 {
		return nil, fmt.Errorf("%w: usd amount must be non-negative", models.ErrInvalidArgument)
	}

	rate, err := c.source.CurrentRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	if rate.Value == nil || rate.Value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive rate", models.ErrOracleUnavailable)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(rate.Decimals)), nil)
	out := new(big.Int).Mul(usd, scale)
	return out.Quo(out, rate.Value), nil
}

// Rate exposes the source's current rate for read-only callers.
func (c *Converter) Rate(ctx context.Context) (Rate, error) {
	rate, err := c.source.CurrentRate(ctx)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	return rate, nil
}
