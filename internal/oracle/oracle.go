// Package oracle supplies the native/USD exchange rate and converts USD
// fixed-point amounts into native amounts at the moment of use.
package oracle

import (
	"context"
	"math/big"
	"sync"
)

// Rate is the USD price of one native unit, scaled by 10^Decimals.
type Rate struct {
	Value    *big.Int
	Decimals uint8
}

type PriceSource interface {
	CurrentRate(ctx context.Context) (Rate, error)
}

// FixedSource returns a rate set by the operator. SetRate lets tests and the
// fixed-rate deployment mode move the price between calls.
type FixedSource struct {
	mu   sync.RWMutex
	rate Rate
}

func NewFixedSource(value *big.Int, decimals uint8) *FixedSource {
	return &FixedSource{rate: Rate{Value: new(big.Int).Set(value), Decimals: decimals}}
}

func (s *FixedSource) CurrentRate(_ context.Context) (Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rate{Value: new(big.Int).Set(s.rate.Value), Decimals: s.rate.Decimals}, nil
}

func (s *FixedSource) SetRate(value *big.Int, decimals uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = Rate{Value: new(big.Int).Set(value), Decimals: decimals}
}
