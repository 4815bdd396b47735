// Package money converts between human-readable decimal strings and the
// 18-decimal fixed-point integers used for USD and native amounts.
package money

import (
	"fmt"
	"math/big"

	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point precision of both USD and native amounts.
const Decimals = 18

// MaxBits bounds parsed amounts to the uint256 range.
const MaxBits = 256

// maxInputLen caps the text accepted before any arithmetic; a uint256 has at
// most 78 digits, plus room for a point and fractional zeros.
const maxInputLen = 128

// ParseUnits parses s (e.g. "12.5") into an integer scaled by 10^decimals.
// Negative values, values with more fractional digits than decimals and
// values outside the uint256 range are rejected. Exponent notation is
// accepted only while the result stays in range.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	if len(s) > maxInputLen {
		return nil, fmt.Errorf("%w: amount is longer than %d characters", models.ErrInvalidArgument, maxInputLen)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", models.ErrInvalidArgument, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount %q is negative", models.ErrInvalidArgument, s)
	}
	// Bound the exponent before Shift and IsInteger, which both scale by it.
	if exp := d.Exponent(); exp > maxInputLen || exp < -(maxInputLen+decimals) {
		return nil, fmt.Errorf("%w: amount %q is out of range", models.ErrInvalidArgument, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimals", models.ErrInvalidArgument, s, decimals)
	}
	v := scaled.BigInt()
	if v.BitLen() > MaxBits {
		return nil, fmt.Errorf("%w: amount %q exceeds %d bits", models.ErrInvalidArgument, s, MaxBits)
	}
	return v, nil
}

// FormatUnits renders v scaled down by 10^decimals without trailing zeros.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

func ParseUSD(s string) (*big.Int, error) { return ParseUnits(s, Decimals) }

func FormatUSD(v *big.Int) string { return FormatUnits(v, Decimals) }

func ParseNative(s string) (*big.Int, error) { return ParseUnits(s, Decimals) }

func FormatNative(v *big.Int) string { return FormatUnits(v, Decimals) }

// ParseWei accepts either a decimal native amount ("0.5") or, with a
// "wei:" prefix, a raw integer in the smallest unit.
func ParseWei(s string) (*big.Int, error) {
	if len(s) > 4 && s[:4] == "wei:" {
		if len(s) > maxInputLen {
			return nil, fmt.Errorf("%w: amount is longer than %d characters", models.ErrInvalidArgument, maxInputLen)
		}
		v, ok := new(big.Int).SetString(s[4:], 10)
		if !ok || v.Sign() < 0 || v.BitLen() > MaxBits {
			return nil, fmt.Errorf("%w: wei amount %q", models.ErrInvalidArgument, s)
		}
		return v, nil
	}
	return ParseNative(s)
}
