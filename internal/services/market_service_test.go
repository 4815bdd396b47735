package services

import (
	"math/big"
	"testing"

	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listItem(t *testing.T, f *fixture, priceUSD int64) *models.Listing {
	t.Helper()
	l, err := f.market.List(testCtx(t), NewCall(seller), "Lamp", "Brass desk lamp", "ipfs://lamp", usd(priceUSD))
	require.NoError(t, err)
	return l
}

func TestMarketListCreatesInSaleListing(t *testing.T) {
	f := newFixture(t)

	l := listItem(t, f, 1500)
	assert.Equal(t, uint64(0), l.ID)
	assert.Equal(t, seller, l.Seller)
	assert.Equal(t, models.ListingStatusInSale, l.Status)
	assert.Equal(t, common.Address{}, l.Buyer)
	assert.Equal(t, 0, l.Escrow.Sign())

	second := listItem(t, f, 20)
	assert.Equal(t, uint64(1), second.ID)
	assert.Contains(t, f.pub.Types(), events.EventListingCreated)
}

func TestMarketListRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.market.List(testCtx(t), NewCall(seller), "x", "", "", big.NewInt(0))
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.market.List(testCtx(t), pay(seller, big.NewInt(1)), "x", "", "", usd(1))
	require.ErrorIs(t, err, models.ErrPaymentMismatch)
}

func TestMarketPurchaseReservesAtConvertedPrice(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	price, err := f.market.ConvertPrice(testCtx(t), l.PriceUSD)
	require.NoError(t, err)
	requireBig(t, milli(500), price)

	got, err := f.market.Purchase(testCtx(t), pay(buyer, price), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusReserved, got.Status)
	assert.Equal(t, buyer, got.Buyer)
	requireBig(t, price, got.Escrow)

	requireBig(t, price, f.balance(marketAddr))
	requireBig(t, price, f.spent(buyer))
	requireBig(t, price, f.market.EscrowTotal())
}

func TestMarketPurchaseChecks(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	tests := []struct {
		name    string
		call    Call
		id      uint64
		wantErr error
	}{
		{"unknown listing", pay(buyer, milli(500)), 42, models.ErrNotFound},
		{"self trade", pay(seller, milli(500)), l.ID, models.ErrInvalidParty},
		{"underpayment", pay(buyer, milli(499)), l.ID, models.ErrPaymentMismatch},
		{"overpayment", pay(buyer, milli(501)), l.ID, models.ErrPaymentMismatch},
		{"no payment", NewCall(buyer), l.ID, models.ErrPaymentMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.market.Purchase(testCtx(t), tt.call, tt.id)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	got, err := f.market.GetListing(testCtx(t), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusInSale, got.Status)
	requireBig(t, startBalance, f.balance(buyer))
	assert.Equal(t, 0, f.balance(marketAddr).Sign())
}

func TestMarketSecondPurchaseFailsWrongStatus(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	_, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), l.ID)
	require.NoError(t, err)

	_, err = f.market.Purchase(testCtx(t), pay(buyer2, milli(500)), l.ID)
	require.ErrorIs(t, err, models.ErrWrongStatus)
	requireBig(t, startBalance, f.balance(buyer2))

	got, err := f.market.GetListing(testCtx(t), l.ID)
	require.NoError(t, err)
	assert.Equal(t, buyer, got.Buyer)
}

func TestMarketPurchaseUsesRateAtCallTime(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	f.price.SetRate(big.NewInt(1500e8), 8)

	_, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), l.ID)
	require.ErrorIs(t, err, models.ErrPaymentMismatch)

	got, err := f.market.Purchase(testCtx(t), pay(buyer, ether(1)), l.ID)
	require.NoError(t, err)
	requireBig(t, ether(1), got.Escrow)
}

func TestMarketCancelThenRepurchase(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	first, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), l.ID)
	require.NoError(t, err)

	_, err = f.market.Cancel(testCtx(t), NewCall(buyer2), l.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	cancelled, err := f.market.Cancel(testCtx(t), NewCall(buyer), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusInSale, cancelled.Status)
	assert.Equal(t, common.Address{}, cancelled.Buyer)
	assert.Equal(t, 0, cancelled.Escrow.Sign())
	requireBig(t, startBalance, f.balance(buyer))
	assert.Equal(t, 0, f.balance(marketAddr).Sign())

	second, err := f.market.Purchase(testCtx(t), pay(buyer2, milli(500)), l.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	requireBig(t, first.Escrow, second.Escrow)
	assert.Equal(t, buyer2, second.Buyer)
	requireBig(t, milli(500), f.balance(marketAddr))

	_, err = f.market.Cancel(testCtx(t), NewCall(buyer), l.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestMarketFullSettlement(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)
	escrow := milli(500)

	_, err := f.market.Purchase(testCtx(t), pay(buyer, escrow), l.ID)
	require.NoError(t, err)

	_, err = f.market.ConfirmReceived(testCtx(t), NewCall(buyer), l.ID)
	require.ErrorIs(t, err, models.ErrWrongStatus, "confirm before ship")

	_, err = f.market.Ship(testCtx(t), NewCall(buyer), l.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	shipped, err := f.market.Ship(testCtx(t), NewCall(seller), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusShipped, shipped.Status)

	_, err = f.market.ConfirmReceived(testCtx(t), NewCall(seller), l.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	settled, err := f.market.ConfirmReceived(testCtx(t), NewCall(buyer), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSettled, settled.Status)

	fee := new(big.Int).Div(new(big.Int).Mul(escrow, big.NewInt(5)), big.NewInt(1000))
	payout := new(big.Int).Sub(escrow, fee)
	requireBig(t, big.NewInt(2_500_000_000_000_000), fee)
	requireBig(t, fee, f.balance(feeSink))
	requireBig(t, new(big.Int).Add(startBalance, payout), f.balance(seller))
	assert.Equal(t, 0, f.balance(marketAddr).Sign())

	_, err = f.market.Cancel(testCtx(t), NewCall(buyer), l.ID)
	require.ErrorIs(t, err, models.ErrWrongStatus)
}

func TestMarketRemove(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	require.ErrorIs(t, f.market.Remove(testCtx(t), NewCall(buyer), l.ID), models.ErrUnauthorized)
	require.NoError(t, f.market.Remove(testCtx(t), NewCall(seller), l.ID))

	got, err := f.market.GetListing(testCtx(t), l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRemoved, got.Status)
	assert.Equal(t, common.Address{}, got.Seller)
	assert.Empty(t, got.Title)
	assert.Equal(t, l.ID, got.ID)

	_, err = f.market.Purchase(testCtx(t), pay(buyer, big.NewInt(0)), l.ID)
	require.ErrorIs(t, err, models.ErrWrongStatus)
	require.ErrorIs(t, f.market.Remove(testCtx(t), NewCall(seller), l.ID), models.ErrWrongStatus)
}

func TestMarketRemoveAfterReservationFails(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)

	_, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), l.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.market.Remove(testCtx(t), NewCall(seller), l.ID), models.ErrWrongStatus)
	requireBig(t, milli(500), f.balance(marketAddr))
}

func TestMarketNonPayableOperationsRejectValue(t *testing.T) {
	f := newFixture(t)
	l := listItem(t, f, 1500)
	_, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), l.ID)
	require.NoError(t, err)

	_, err = f.market.Ship(testCtx(t), pay(seller, big.NewInt(1)), l.ID)
	require.ErrorIs(t, err, models.ErrPaymentMismatch)
	_, err = f.market.Cancel(testCtx(t), pay(buyer, big.NewInt(1)), l.ID)
	require.ErrorIs(t, err, models.ErrPaymentMismatch)
}

func TestMarketListListingsFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	a := listItem(t, f, 1500)
	listItem(t, f, 30)

	_, err := f.market.Purchase(testCtx(t), pay(buyer, milli(500)), a.ID)
	require.NoError(t, err)

	assert.Len(t, f.market.ListListings(testCtx(t), ""), 2)
	reserved := f.market.ListListings(testCtx(t), models.ListingStatusReserved)
	require.Len(t, reserved, 1)
	assert.Equal(t, a.ID, reserved[0].ID)

	_, err = f.market.GetListing(testCtx(t), 9)
	require.ErrorIs(t, err, models.ErrNotFound)
}
