package repositories

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/escrow-marketplace/backend/internal/db"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	market = common.HexToAddress("0x000000000000000000000000000000000000ca11")
)

// testPool connects to TEST_DATABASE_URL, applies the migrations and empties
// the escrow tables. Tests skip when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := testCtx(t)
	pool, err := db.NewPostgresPool(ctx, dsn, 4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, db.Migrations(""), zap.NewNop()))
	truncate := func() {
		_, err := pool.Exec(context.Background(), `TRUNCATE ledger_balances, component_records`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(truncate)
	return pool
}

func entry(key, data string) ledger.Entry {
	return ledger.Entry{Component: market, Kind: "listing", Key: key, Data: []byte(data)}
}

func TestEscrowRepoCommitAndLoad(t *testing.T) {
	repo := NewEscrowRepo(testPool(t))
	ctx := testCtx(t)

	require.NoError(t, repo.Commit(ctx, map[common.Address]*big.Int{alice: big.NewInt(100)}, nil))
	require.NoError(t, repo.Commit(ctx,
		map[common.Address]*big.Int{alice: big.NewInt(-40), market: big.NewInt(40)},
		[]ledger.Entry{entry("0", `{"id":0,"status":"reserved"}`)},
	))
	require.NoError(t, repo.Commit(ctx, nil, []ledger.Entry{entry("0", `{"id":0,"status":"shipped"}`)}))

	balances, err := repo.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, "60", balances[alice].String())
	assert.Equal(t, "40", balances[market].String())

	records, err := repo.LoadRecords(ctx, market, "listing")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"id":0,"status":"shipped"}`, string(records[0]))

	none, err := repo.LoadRecords(ctx, market, "auction")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEscrowRepoKeepsLargeBalancesExact(t *testing.T) {
	repo := NewEscrowRepo(testPool(t))
	ctx := testCtx(t)

	max256, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.NoError(t, repo.Commit(ctx, map[common.Address]*big.Int{bob: max256}, nil))

	balances, err := repo.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, max256.Cmp(balances[bob]))
}

func TestEscrowRepoRollsBackWholeCommit(t *testing.T) {
	repo := NewEscrowRepo(testPool(t))
	ctx := testCtx(t)

	require.NoError(t, repo.Commit(ctx,
		map[common.Address]*big.Int{alice: big.NewInt(10)},
		[]ledger.Entry{entry("0", `{"id":0,"status":"in_sale"}`)},
	))

	err := repo.Commit(ctx,
		map[common.Address]*big.Int{alice: big.NewInt(-11), bob: big.NewInt(11)},
		[]ledger.Entry{entry("0", `{"id":0,"status":"reserved"}`)},
	)
	require.Error(t, err)

	balances, err := repo.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", balances[alice].String())
	assert.NotContains(t, balances, bob)

	records, err := repo.LoadRecords(ctx, market, "listing")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"id":0,"status":"in_sale"}`, string(records[0]))
}

func TestLedgerRestoresFromEscrowRepo(t *testing.T) {
	repo := NewEscrowRepo(testPool(t))
	ctx := testCtx(t)

	l := ledger.NewWithStore(repo, zap.NewNop())
	require.NoError(t, l.Credit(ctx, alice, big.NewInt(50)))
	require.NoError(t, l.Commit(ctx,
		[]ledger.Transfer{ledger.Pay(alice, market, big.NewInt(20))},
		ledger.Record{Component: market, Kind: "listing", Key: "0", Value: map[string]any{"id": 0}},
	))

	restored := ledger.NewWithStore(repo, zap.NewNop())
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, "30", restored.BalanceOf(alice).String())
	assert.Equal(t, "20", restored.BalanceOf(market).String())

	records, err := restored.Records(ctx, market, "listing")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"id":0}`, string(records[0]))
}
