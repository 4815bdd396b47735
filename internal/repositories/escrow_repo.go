package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowRepo persists ledger balances and component records. Every ledger
// commit is written in one transaction.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) LoadBalances(ctx context.Context) (map[common.Address]*big.Int, error) {
	rows, err := r.pool.Query(ctx, `SELECT address, balance::text FROM ledger_balances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[common.Address]*big.Int)
	for rows.Next() {
		var addr, balance string
		if err := rows.Scan(&addr, &balance); err != nil {
			return nil, err
		}
		b, ok := new(big.Int).SetString(balance, 10)
		if !ok {
			return nil, fmt.Errorf("balance of %s is not an integer: %q", addr, balance)
		}
		out[common.HexToAddress(addr)] = b
	}
	return out, rows.Err()
}

func (r *EscrowRepo) LoadRecords(ctx context.Context, component common.Address, kind string) ([]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT data::text FROM component_records
		WHERE component = $1 AND kind = $2
		ORDER BY key
	`, component.Hex(), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}

// Commit adds the balance deltas and upserts the records. The balance check
// constraint rejects the whole transaction if any account would go negative.
func (r *EscrowRepo) Commit(ctx context.Context, deltas map[common.Address]*big.Int, entries []ledger.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for addr, d := range deltas {
		if d.Sign() == 0 {
			continue
		}
		batch.Queue(`
			INSERT INTO ledger_balances (address, balance)
			VALUES ($1, $2::text::numeric)
			ON CONFLICT (address) DO UPDATE
			SET balance = ledger_balances.balance + EXCLUDED.balance, updated_at = now()
		`, addr.Hex(), d.String())
	}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO component_records (component, kind, key, data)
			VALUES ($1, $2, $3, $4::text::jsonb)
			ON CONFLICT (component, kind, key) DO UPDATE
			SET data = EXCLUDED.data, updated_at = now()
		`, e.Component.Hex(), e.Kind, e.Key, string(e.Data))
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
