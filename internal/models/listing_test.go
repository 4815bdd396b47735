package models

import (
	"math/big"
	"testing"
)

func TestIsValidListingTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{ListingStatusInSale, ListingStatusReserved, true},
		{ListingStatusReserved, ListingStatusShipped, true},
		{ListingStatusShipped, ListingStatusSettled, true},

		// Cancellation back-edge and removal
		{ListingStatusReserved, ListingStatusInSale, true},
		{ListingStatusInSale, ListingStatusRemoved, true},

		// Invalid transitions
		{ListingStatusReserved, ListingStatusRemoved, false},
		{ListingStatusShipped, ListingStatusInSale, false},
		{ListingStatusInSale, ListingStatusShipped, false},
		{ListingStatusSettled, ListingStatusInSale, false},
		{ListingStatusRemoved, ListingStatusInSale, false},
		{"nonexistent", ListingStatusReserved, false},
		{ListingStatusInSale, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidListingTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidListingTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestOrderAndAuctionTransitions(t *testing.T) {
	tests := []struct {
		name     string
		valid    func(from, to string) bool
		from     string
		to       string
		expected bool
	}{
		{"order fill", IsValidOrderTransition, OrderStatusPending, OrderStatusSent, true},
		{"order cancel", IsValidOrderTransition, OrderStatusPending, OrderStatusCancelled, true},
		{"order confirm", IsValidOrderTransition, OrderStatusSent, OrderStatusCompleted, true},
		{"order cancel after fill", IsValidOrderTransition, OrderStatusSent, OrderStatusCancelled, false},
		{"order revive", IsValidOrderTransition, OrderStatusCancelled, OrderStatusPending, false},
		{"auction end", IsValidAuctionTransition, AuctionStatusOpen, AuctionStatusEnded, true},
		{"auction reopen", IsValidAuctionTransition, AuctionStatusEnded, AuctionStatusOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.valid(tt.from, tt.to); got != tt.expected {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	tables := map[string]map[string][]string{
		ListingStatusSettled: ValidListingTransitions,
		ListingStatusRemoved: ValidListingTransitions,
		AuctionStatusEnded:   ValidAuctionTransitions,
		OrderStatusCompleted: ValidOrderTransitions,
		OrderStatusCancelled: ValidOrderTransitions,
	}
	for status, table := range tables {
		transitions, ok := table[status]
		if !ok {
			t.Errorf("status %q missing from its transition table", status)
			continue
		}
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		rate       uint64
		wantPayout int64
		wantFee    int64
	}{
		{"market 0.5%", 1_000_000, 5, 995_000, 5_000},
		{"auction 1%", 1_000_000, 10, 990_000, 10_000},
		{"store 0.3%", 1_000_000, 3, 997_000, 3_000},
		{"zero rate", 12345, 0, 12345, 0},
		{"full rate", 12345, 1000, 0, 12345},
		{"truncates toward seller", 999, 5, 995, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, fee := SplitFee(big.NewInt(tt.amount), tt.rate)
			if payout.Int64() != tt.wantPayout || fee.Int64() != tt.wantFee {
				t.Errorf("SplitFee(%d, %d) = (%s, %s), want (%d, %d)", tt.amount, tt.rate, payout, fee, tt.wantPayout, tt.wantFee)
			}
			if new(big.Int).Add(payout, fee).Int64() != tt.amount {
				t.Errorf("payout + fee != amount for %d", tt.amount)
			}
		})
	}
}

func TestStoreProductAvailable(t *testing.T) {
	fixed := StoreProduct{Kind: ProductKindFixed, Quantity: 5}
	if !fixed.Available(5) {
		t.Error("fixed product should allow ordering its whole stock")
	}
	if fixed.Available(6) {
		t.Error("fixed product should reject ordering past its stock")
	}

	unlimited := StoreProduct{Kind: ProductKindUnlimited, Quantity: UnlimitedQuantity}
	if !unlimited.Available(1_000_000) {
		t.Error("unlimited product should accept any quantity")
	}
}
