// Package worker holds the background jobs run by cmd/worker.
package worker

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/escrow-marketplace/backend/internal/events"
	"go.uber.org/zap"
)

// AuctionWatcher tracks open auctions from the auction stream and announces
// each one once its bidding period has elapsed, so the seller knows it can be
// ended.
type AuctionWatcher struct {
	mu        sync.Mutex
	deadlines map[uint64]time.Time
	publisher events.Publisher
	now       func() time.Time
	log       *zap.Logger
}

func NewAuctionWatcher(publisher events.Publisher, now func() time.Time, log *zap.Logger) *AuctionWatcher {
	if now == nil {
		now = time.Now
	}
	return &AuctionWatcher{
		deadlines: make(map[uint64]time.Time),
		publisher: publisher,
		now:       now,
		log:       log,
	}
}

// Handle consumes one auction stream event.
func (w *AuctionWatcher) Handle(event events.Event) {
	id, ok := payloadInt(event.Payload["auction_id"])
	if !ok || id < 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch event.Type {
	case events.EventAuctionStarted:
		end, ok := payloadInt(event.Payload["end_time"])
		if !ok {
			w.log.Warn("auction_started without end_time", zap.Int64("auction_id", id))
			return
		}
		w.deadlines[uint64(id)] = time.Unix(end, 0)
	case events.EventAuctionEnded, events.EventAuctionPeriodReached:
		delete(w.deadlines, uint64(id))
	}
}

// Pending returns the number of auctions still being watched.
func (w *AuctionWatcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.deadlines)
}

// Scan publishes auction_period_reached for every auction whose end time has
// passed and stops watching it. It returns the announced ids in order.
func (w *AuctionWatcher) Scan(ctx context.Context) []uint64 {
	now := w.now()

	w.mu.Lock()
	var due []uint64
	for id, end := range w.deadlines {
		if !now.Before(end) {
			due = append(due, id)
			delete(w.deadlines, id)
		}
	}
	w.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	for _, id := range due {
		if err := w.publisher.Publish(ctx, events.StreamAuction, events.Event{
			Type:    events.EventAuctionPeriodReached,
			Payload: map[string]any{"auction_id": id},
		}); err != nil {
			w.log.Error("failed to announce auction period", zap.Uint64("auction_id", id), zap.Error(err))
			continue
		}
		w.log.Info("auction period reached", zap.Uint64("auction_id", id))
	}
	return due
}

// payloadInt reads an integer payload field. Events decoded from JSON carry
// float64 numbers, in-process events carry the original integer type.
func payloadInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
