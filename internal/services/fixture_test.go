package services

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin       = common.HexToAddress("0x00000000000000000000000000000000000ad312")
	feeSink     = common.HexToAddress("0x000000000000000000000000000000000000fee5")
	marketAddr  = common.HexToAddress("0x0000000000000000000000000000000000000aa1")
	auctionAddr = common.HexToAddress("0x0000000000000000000000000000000000000aa2")
	factoryAddr = common.HexToAddress("0x0000000000000000000000000000000000000aa3")

	seller  = common.HexToAddress("0x0000000000000000000000000000000000005e11")
	buyer   = common.HexToAddress("0x000000000000000000000000000000000000b001")
	buyer2  = common.HexToAddress("0x000000000000000000000000000000000000b002")
	bidder1 = common.HexToAddress("0x000000000000000000000000000000000000b1d1")
	bidder2 = common.HexToAddress("0x000000000000000000000000000000000000b1d2")
)

var startBalance = ether(10_000)

// ether returns n whole native units; usd returns n whole dollars. Both use
// 18 decimals.
func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func usd(n int64) *big.Int { return ether(n) }

// milli returns n thousandths of a native unit.
func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

func pay(from common.Address, value *big.Int) Call {
	return Call{From: from, Value: value}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    ledger.Store
	ledger   *ledger.Ledger
	price    *oracle.FixedSource
	pub      *events.MemoryPublisher
	clock    *fakeClock
	registry *Registry
	market   *MarketService
	auction  *AuctionService
	factory  *StoreFactoryService
}

// newFixture wires every component at rate 3000 USD per native unit
// (8 decimals) with fees market 5, auction 10, store 3 and a 10 USD store
// creation fee. Every participant starts with startBalance.
func newFixture(t *testing.T) *fixture {
	return newFixtureOn(t, ledger.NewMemoryStore())
}

func newFixtureOn(t *testing.T, store ledger.Store) *fixture {
	t.Helper()
	f := buildFixture(store, &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})

	for _, a := range []common.Address{seller, buyer, buyer2, bidder1, bidder2} {
		require.NoError(t, f.ledger.Credit(testCtx(t), a, startBalance))
	}

	adminCall := NewCall(admin)
	require.NoError(t, f.registry.SetComponentAddress(testCtx(t), adminCall, models.ComponentMarket, marketAddr))
	require.NoError(t, f.registry.SetComponentAddress(testCtx(t), adminCall, models.ComponentAuction, auctionAddr))
	require.NoError(t, f.registry.SetComponentAddress(testCtx(t), adminCall, models.ComponentStoreFactory, factoryAddr))
	return f
}

func buildFixture(store ledger.Store, clock *fakeClock) *fixture {
	log := zap.NewNop()
	l := ledger.NewWithStore(store, log)
	price := oracle.NewFixedSource(big.NewInt(3000e8), 8)
	pub := events.NewMemoryPublisher()

	registry := NewRegistry(admin, feeSink, models.FeeConfig{
		MarketFeeRate:       5,
		AuctionFeeRate:      10,
		StoreFeeRate:        3,
		StoreCreationFeeUSD: usd(10),
	}, oracle.NewConverter(price), l, NopAuditLogger(), pub, log)

	return &fixture{
		store:    store,
		ledger:   l,
		price:    price,
		pub:      pub,
		clock:    clock,
		registry: registry,
		market:   NewMarketService(marketAddr, registry, NopAuditLogger(), pub, log),
		auction:  NewAuctionService(auctionAddr, registry, NopAuditLogger(), pub, clock.Now, log),
		factory:  NewStoreFactoryService(factoryAddr, registry, NopAuditLogger(), pub, log),
	}
}

// restart rebuilds every component on the fixture's store, as a new process
// would, and restores their state.
func (f *fixture) restart(t *testing.T) *fixture {
	t.Helper()
	g := buildFixture(f.store, f.clock)
	require.NoError(t, g.ledger.Restore(testCtx(t)))
	require.NoError(t, g.registry.Restore(testCtx(t)))
	require.NoError(t, g.market.Restore(testCtx(t)))
	require.NoError(t, g.auction.Restore(testCtx(t)))
	require.NoError(t, g.factory.Restore(testCtx(t)))
	return g
}

func (f *fixture) balance(addr common.Address) *big.Int {
	return f.ledger.BalanceOf(addr)
}

// spent returns how much addr has paid out net since the fixture started.
func (f *fixture) spent(addr common.Address) *big.Int {
	return new(big.Int).Sub(startBalance, f.ledger.BalanceOf(addr))
}

func requireBig(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, want.String(), got.String(), msgAndArgs...)
}
