package money

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/escrow-marketplace/backend/internal/models"
)

func TestParseUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1500", "1500000000000000000000"},
		{"0.5", "500000000000000000"},
		{"10.25", "10250000000000000000"},
		{"0", "0"},
		{"0.000000000000000001", "1"},
		{"1.5e3", "1500000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUSD(tt.in)
			if err != nil {
				t.Fatalf("ParseUSD(%q) error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUSD(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseUSDRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.0000000000000000001"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseUSD(in); !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("ParseUSD(%q) error = %v, want ErrInvalidArgument", in, err)
			}
		})
	}
}

func TestParseUnitsBoundsSize(t *testing.T) {
	huge := "1" + strings.Repeat("0", 200)
	for _, in := range []string{
		"1e50000000",
		"1e-50000000",
		"1e60",
		huge,
		"wei:" + huge,
	} {
		name := in
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := ParseWei(in)
				done <- err
			}()
			select {
			case err := <-done:
				if !errors.Is(err, models.ErrInvalidArgument) {
					t.Errorf("ParseWei(%.20q) error = %v, want ErrInvalidArgument", in, err)
				}
			case <-time.After(time.Second):
				t.Fatalf("ParseWei(%.20q) did not return within a second", in)
			}
		})
	}

	// 2^256-1 is the largest accepted wei amount.
	maxWei := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), MaxBits), big.NewInt(1))
	got, err := ParseWei("wei:" + maxWei.String())
	if err != nil || got.Cmp(maxWei) != 0 {
		t.Errorf("ParseWei(max uint256) = %v, %v", got, err)
	}
	if _, err := ParseWei("wei:" + new(big.Int).Add(maxWei, big.NewInt(1)).String()); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("ParseWei(2^256) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFormatNative(t *testing.T) {
	tests := []struct {
		in   *big.Int
		want string
	}{
		{big.NewInt(5e17), "0.5"},
		{new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)), "3"},
		{big.NewInt(1), "0.000000000000000001"},
		{nil, "0"},
	}

	for _, tt := range tests {
		if got := FormatNative(tt.in); got != tt.want {
			t.Errorf("FormatNative(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseWei(t *testing.T) {
	got, err := ParseWei("wei:12345")
	if err != nil || got.Int64() != 12345 {
		t.Errorf("ParseWei(wei:12345) = %v, %v", got, err)
	}
	got, err = ParseWei("0.5")
	if err != nil || got.Int64() != 5e17 {
		t.Errorf("ParseWei(0.5) = %v, %v", got, err)
	}
	if _, err := ParseWei("wei:-3"); err == nil {
		t.Error("ParseWei(wei:-3) expected error")
	}
}
