package oracle

import (
	"context"
	"fmt"

	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FromConfig builds the price source selected by ORACLE_MODE, wrapped in the
// redis cache when rdb is set. The returned func releases the RPC connection.
func FromConfig(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *zap.Logger) (PriceSource, func(), error) {
	var (
		src     PriceSource
		closeFn = func() {}
	)

	switch cfg.OracleMode {
	case config.OracleModeFixed:
		if cfg.FixedRateDecimals < 0 || cfg.FixedRateDecimals > 36 {
			return nil, nil, fmt.Errorf("FIXED_RATE_DECIMALS out of range: %d", cfg.FixedRateDecimals)
		}
		value, err := money.ParseUnits(cfg.FixedRate, int32(cfg.FixedRateDecimals))
		if err != nil {
			return nil, nil, fmt.Errorf("FIXED_RATE: %w", err)
		}
		src = NewFixedSource(value, uint8(cfg.FixedRateDecimals))
		log.Info("using fixed price source", zap.String("rate", cfg.FixedRate))
	case config.OracleModeChainlink:
		cl, client, err := DialChainlink(ctx, cfg.EthRPCURL, cfg.Aggregator())
		if err != nil {
			return nil, nil, err
		}
		src = cl
		closeFn = client.Close
		log.Info("using chainlink price source", zap.String("aggregator", cfg.Aggregator().Hex()))
	default:
		return nil, nil, fmt.Errorf("unknown ORACLE_MODE %q", cfg.OracleMode)
	}

	if rdb != nil {
		src = NewCachedSource(src, rdb, cfg.PriceCacheTTL, log)
	}
	return src, closeFn, nil
}
