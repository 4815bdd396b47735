package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// Record kinds written through the ledger.
const (
	recordRegistry = "registry"
	recordListing  = "listing"
	recordAuction  = "auction"
	recordStore    = "store"
	recordProduct  = "product"
	recordOrder    = "order"
	recordReviews  = "reviews"
)

// loadRecords decodes every stored record of kind written by component.
func loadRecords[T any](ctx context.Context, l *ledger.Ledger, component common.Address, kind string) ([]T, error) {
	raws, err := l.Records(ctx, component, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s records of %s: %w", kind, component.Hex(), err)
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s record of %s: %w", kind, component.Hex(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// sequence orders restored records by id and checks the ids run 0..n-1,
// since ids index the in-memory slices.
func sequence[T any](items []T, id func(*T) uint64) ([]*T, error) {
	sort.Slice(items, func(i, j int) bool { return id(&items[i]) < id(&items[j]) })
	out := make([]*T, len(items))
	for i := range items {
		if id(&items[i]) != uint64(i) {
			return nil, fmt.Errorf("stored records skip id %d", i)
		}
		out[i] = &items[i]
	}
	return out, nil
}
