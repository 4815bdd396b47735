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

func TestRegistryRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	call := NewCall(seller)

	require.ErrorIs(t, f.registry.SetFee(testCtx(t), call, models.FeeKindMarket, 1), models.ErrUnauthorized)
	require.ErrorIs(t, f.registry.SetComponentAddress(testCtx(t), call, models.ComponentMarket, seller), models.ErrUnauthorized)
	require.ErrorIs(t, f.registry.SetStoreCreationFee(testCtx(t), call, usd(1)), models.ErrUnauthorized)
	require.ErrorIs(t, f.registry.WithdrawFees(testCtx(t), call, seller, big.NewInt(1)), models.ErrUnauthorized)

	rate, err := f.registry.FeeRate(models.FeeKindMarket)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rate)
}

func TestRegistrySetFee(t *testing.T) {
	f := newFixture(t)
	call := NewCall(admin)

	tests := []struct {
		name    string
		kind    string
		rate    uint64
		wantErr error
	}{
		{"market", models.FeeKindMarket, 7, nil},
		{"auction", models.FeeKindAuction, 25, nil},
		{"store", models.FeeKindStore, 1000, nil},
		{"above denominator", models.FeeKindStore, 1001, models.ErrInvalidArgument},
		{"unknown kind", "lottery", 1, models.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.registry.SetFee(testCtx(t), call, tt.kind, tt.rate)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := f.registry.FeeRate(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.rate, got)
		})
	}

	assert.Contains(t, f.pub.Types(), events.EventRegistryUpdated)
}

func TestRegistrySnapshot(t *testing.T) {
	f := newFixture(t)

	snap := f.registry.Snapshot()
	assert.Equal(t, admin, snap.Admin)
	assert.Equal(t, feeSink, snap.FeeSink)
	assert.Equal(t, marketAddr, snap.Components[models.ComponentMarket])
	assert.Equal(t, auctionAddr, snap.Components[models.ComponentAuction])
	assert.Equal(t, factoryAddr, snap.Components[models.ComponentStoreFactory])
	requireBig(t, usd(10), snap.Fees.StoreCreationFeeUSD)

	snap.Fees.StoreCreationFeeUSD.SetInt64(0)
	requireBig(t, usd(10), f.registry.StoreCreationFee())

	moved := common.HexToAddress("0x00000000000000000000000000000000000bbbb1")
	require.NoError(t, f.registry.SetComponentAddress(testCtx(t), NewCall(admin), models.ComponentMarket, moved))
	got, ok := f.registry.ComponentAddress(models.ComponentMarket)
	require.True(t, ok)
	assert.Equal(t, moved, got)

	require.ErrorIs(t, f.registry.SetComponentAddress(testCtx(t), NewCall(admin), "bank", moved), models.ErrInvalidArgument)
}

func TestRegistryWithdrawFees(t *testing.T) {
	f := newFixture(t)
	_, err := f.factory.CreateStore(testCtx(t), pay(seller, storeCreationFee), "shop")
	require.NoError(t, err)

	require.ErrorIs(t, f.registry.WithdrawFees(testCtx(t), NewCall(admin), admin, ether(1)), models.ErrInsufficientFunds)

	require.NoError(t, f.registry.WithdrawFees(testCtx(t), NewCall(admin), admin, storeCreationFee))
	requireBig(t, storeCreationFee, f.balance(admin))
	assert.Equal(t, 0, f.balance(feeSink).Sign())
	assert.Contains(t, f.pub.Types(), events.EventFeesWithdrawn)
}

func TestRegistryRejectsAttachedValue(t *testing.T) {
	f := newFixture(t)
	err := f.registry.SetFee(testCtx(t), pay(admin, big.NewInt(1)), models.FeeKindMarket, 1)
	require.ErrorIs(t, err, models.ErrPaymentMismatch)
}

func TestSettlementFollowsRegisteredComponents(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	moved := common.HexToAddress("0x00000000000000000000000000000000000bbbb1")

	l := listItem(t, f, 1500)
	_, err := f.market.Purchase(ctx, pay(buyer, milli(500)), l.ID)
	require.NoError(t, err)
	_, err = f.market.Ship(ctx, NewCall(seller), l.ID)
	require.NoError(t, err)

	require.NoError(t, f.registry.SetComponentAddress(ctx, NewCall(admin), models.ComponentMarket, moved))
	_, err = f.market.ConfirmReceived(ctx, NewCall(buyer), l.ID)
	require.ErrorIs(t, err, models.ErrUnauthorized)
	got, err := f.market.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusShipped, got.Status)
	requireBig(t, milli(500), f.balance(marketAddr))

	require.NoError(t, f.registry.SetComponentAddress(ctx, NewCall(admin), models.ComponentMarket, marketAddr))
	_, err = f.market.ConfirmReceived(ctx, NewCall(buyer), l.ID)
	require.NoError(t, err)

	require.NoError(t, f.registry.SetComponentAddress(ctx, NewCall(admin), models.ComponentStoreFactory, moved))
	_, err = f.factory.CreateStore(ctx, pay(seller, storeCreationFee), "shop")
	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Empty(t, f.factory.ListStores(ctx))
}
