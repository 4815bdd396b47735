package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKET_FEE_RATE", "")
	t.Setenv("ORACLE_MODE", "")

	cfg := Load()
	if cfg.MarketFeeRate != 5 || cfg.AuctionFeeRate != 10 || cfg.StoreFeeRate != 3 {
		t.Errorf("fee defaults = %d/%d/%d, want 5/10/3", cfg.MarketFeeRate, cfg.AuctionFeeRate, cfg.StoreFeeRate)
	}
	if cfg.OracleMode != OracleModeFixed {
		t.Errorf("OracleMode = %q, want %q", cfg.OracleMode, OracleModeFixed)
	}
	if cfg.NonceTTL != 5*time.Minute {
		t.Errorf("NonceTTL = %v, want 5m", cfg.NonceTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUCTION_FEE_RATE", "25")
	t.Setenv("PRICE_CACHE_TTL_SECONDS", "90")
	t.Setenv("ADMIN_ADDRESS", "0x00000000000000000000000000000000000ad312")

	cfg := Load()
	if cfg.AuctionFeeRate != 25 {
		t.Errorf("AuctionFeeRate = %d, want 25", cfg.AuctionFeeRate)
	}
	if cfg.PriceCacheTTL != 90*time.Second {
		t.Errorf("PriceCacheTTL = %v, want 90s", cfg.PriceCacheTTL)
	}
	if got := cfg.Admin(); got != common.HexToAddress("0xad312") {
		t.Errorf("Admin() = %s", got.Hex())
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "ten")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvInt(garbage) = %d, want 7", got)
	}
}

func TestFees(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{MarketFeeRate: 5, AuctionFeeRate: 10, StoreFeeRate: 3, StoreCreationFeeUSD: "10"}, false},
		{"rate too high", Config{MarketFeeRate: 1001, StoreCreationFeeUSD: "10"}, true},
		{"negative rate", Config{StoreFeeRate: -1, StoreCreationFeeUSD: "10"}, true},
		{"bad creation fee", Config{StoreCreationFeeUSD: "ten"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := tt.cfg.Fees()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fees() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && fees.StoreCreationFeeUSD.String() != "10000000000000000000" {
				t.Errorf("StoreCreationFeeUSD = %s", fees.StoreCreationFeeUSD)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("NOTIFY_EVENT_TYPES", " bid_placed, ,auction_ended ")
	got := getEnvList("NOTIFY_EVENT_TYPES")
	if len(got) != 2 || got[0] != "bid_placed" || got[1] != "auction_ended" {
		t.Errorf("getEnvList = %q", got)
	}

	t.Setenv("NOTIFY_EVENT_TYPES", "")
	if got := getEnvList("NOTIFY_EVENT_TYPES"); got != nil {
		t.Errorf("empty list = %q, want nil", got)
	}
}
