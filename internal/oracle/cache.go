package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateKey = "oracle:rate"

// CachedSource keeps the last rate of an upstream source in a redis hash
// ("value", "decimals") for ttl. A redis failure falls back to the upstream.
type CachedSource struct {
	upstream PriceSource
	rdb      *redis.Client
	ttl      time.Duration
	log      *zap.Logger
}

func NewCachedSource(upstream PriceSource, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedSource {
	return &CachedSource{upstream: upstream, rdb: rdb, ttl: ttl, log: log}
}

func (s *CachedSource) CurrentRate(ctx context.Context) (Rate, error) {
	rate, ok, err := s.cached(ctx)
	if err != nil {
		s.log.Warn("rate cache read failed", zap.Error(err))
	}
	if ok {
		return rate, nil
	}
	return s.Refresh(ctx)
}

// Refresh reads the upstream rate and stores it, regardless of the cached
// entry's age.
func (s *CachedSource) Refresh(ctx context.Context) (Rate, error) {
	rate, err := s.upstream.CurrentRate(ctx)
	if err != nil {
		return Rate{}, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, rateKey, map[string]interface{}{
		"value":    rate.Value.String(),
		"decimals": strconv.Itoa(int(rate.Decimals)),
	})
	pipe.Expire(ctx, rateKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("rate cache write failed", zap.Error(err))
	}
	return rate, nil
}

func (s *CachedSource) cached(ctx context.Context) (Rate, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, rateKey).Result()
	if err != nil {
		return Rate{}, false, fmt.Errorf("redis: get rate: %w", err)
	}
	if len(vals) == 0 {
		return Rate{}, false, nil
	}

	value, ok := new(big.Int).SetString(vals["value"], 10)
	if !ok {
		return Rate{}, false, fmt.Errorf("redis: parse rate value %q", vals["value"])
	}
	decimals, err := strconv.ParseUint(vals["decimals"], 10, 8)
	if err != nil {
		return Rate{}, false, fmt.Errorf("redis: parse rate decimals: %w", err)
	}
	return Rate{Value: value, Decimals: uint8(decimals)}, true, nil
}
