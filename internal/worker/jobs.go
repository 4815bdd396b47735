package worker

import (
	"context"
	"time"

	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/oracle"
	"go.uber.org/zap"
)

// RateRefresher re-reads the upstream price. oracle.CachedSource implements it.
type RateRefresher interface {
	Refresh(ctx context.Context) (oracle.Rate, error)
}

// NoncePruner drops expired login challenges. repositories.NonceRepo
// implements it.
type NoncePruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func RefreshRate(ctx context.Context, r RateRefresher, log *zap.Logger) {
	rate, err := r.Refresh(ctx)
	if err != nil {
		log.Error("failed to refresh rate", zap.Error(err))
		return
	}
	log.Debug("rate refreshed",
		zap.String("value", money.FormatUnits(rate.Value, int32(rate.Decimals))),
		zap.Uint8("decimals", rate.Decimals),
	)
}

func PruneNonces(ctx context.Context, p NoncePruner, log *zap.Logger) {
	n, err := p.DeleteExpired(ctx)
	if err != nil {
		log.Error("failed to prune login nonces", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("pruned expired login nonces", zap.Int64("count", n))
	}
}

// Every runs fn on each tick until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}
