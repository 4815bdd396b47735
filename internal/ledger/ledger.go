// Package ledger keeps native-currency balances for every identity and
// component account. Value only moves through Commit, which applies a batch
// of transfers, together with the component records they change, as one unit.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Pay is shorthand for building a transfer leg.
func Pay(from, to common.Address, amount *big.Int) Transfer {
	return Transfer{From: from, To: to, Amount: amount}
}

// Record is the state of one component entity after a commit. Value is
// encoded as JSON.
type Record struct {
	Component common.Address
	Kind      string
	Key       string
	Value     any
}

// Entry is an encoded Record as handed to a Store.
type Entry struct {
	Component common.Address
	Kind      string
	Key       string
	Data      json.RawMessage
}

// Store persists balances and component records. Commit adds every delta
// and upserts every entry in one transaction, or changes nothing.
type Store interface {
	LoadBalances(ctx context.Context) (map[common.Address]*big.Int, error)
	LoadRecords(ctx context.Context, component common.Address, kind string) ([]json.RawMessage, error)
	Commit(ctx context.Context, deltas map[common.Address]*big.Int, entries []Entry) error
}

type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
	store    Store
	log      *zap.Logger
}

// New returns a ledger that keeps its state in process only.
func New(log *zap.Logger) *Ledger {
	return NewWithStore(nil, log)
}

// NewWithStore returns a ledger that writes every commit through store
// before applying it in memory.
func NewWithStore(store Store, log *zap.Logger) *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*big.Int),
		store:    store,
		log:      log,
	}
}

// Restore replaces the in-memory balances with the stored ones.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	balances, err := l.store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[common.Address]*big.Int, len(balances))
	for addr, b := range balances {
		l.balances[addr] = new(big.Int).Set(b)
	}
	l.log.Info("ledger restored", zap.Int("accounts", len(balances)))
	return nil
}

// Records returns the stored records of kind written by component, in no
// particular order. Without a store there is nothing to return.
func (l *Ledger) Records(ctx context.Context, component common.Address, kind string) ([]json.RawMessage, error) {
	if l.store == nil {
		return nil, nil
	}
	return l.store.LoadRecords(ctx, component, kind)
}

// BalanceOf returns a copy of the balance held by addr.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Credit adds externally deposited funds to addr.
func (l *Ledger) Credit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", models.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	deltas := map[common.Address]*big.Int{addr: new(big.Int).Set(amount)}
	if err := l.persist(ctx, deltas, nil); err != nil {
		return err
	}
	l.add(addr, amount)
	l.log.Info("ledger credited",
		zap.String("address", addr.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Apply commits transfers that change no component record.
func (l *Ledger) Apply(ctx context.Context, transfers ...Transfer) error {
	return l.Commit(ctx, transfers)
}

// Commit applies every transfer and writes every record, or does neither.
// Legs with a zero amount or identical endpoints are ignored.
func (l *Ledger) Commit(ctx context.Context, transfers []Transfer, records ...Record) error {
	deltas := make(map[common.Address]*big.Int)
	for i, t := range transfers {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: transfer %d has a negative or missing amount", models.ErrInvalidArgument, i)
		}
		if t.Amount.Sign() == 0 || t.From == t.To {
			continue
		}
		addDelta(deltas, t.From, new(big.Int).Neg(t.Amount))
		addDelta(deltas, t.To, t.Amount)
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("encode %s record %s: %w", r.Kind, r.Key, err)
		}
		entries = append(entries, Entry{Component: r.Component, Kind: r.Kind, Key: r.Key, Data: data})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, d := range deltas {
		if d.Sign() >= 0 {
			continue
		}
		have := l.balances[addr]
		if have == nil {
			have = new(big.Int)
		}
		if new(big.Int).Add(have, d).Sign() < 0 {
			return fmt.Errorf("%w: %s holds %s, needs %s", models.ErrInsufficientFunds, addr.Hex(), have, new(big.Int).Neg(d))
		}
	}

	if err := l.persist(ctx, deltas, entries); err != nil {
		return err
	}
	for addr, d := range deltas {
		l.add(addr, d)
	}
	return nil
}

// persist writes a batch through the store. The caller holds l.mu, so the
// stored order of commits matches the in-memory one.
func (l *Ledger) persist(ctx context.Context, deltas map[common.Address]*big.Int, entries []Entry) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Commit(ctx, deltas, entries); err != nil {
		l.log.Error("ledger commit failed", zap.Int("accounts", len(deltas)), zap.Int("records", len(entries)), zap.Error(err))
		return fmt.Errorf("commit ledger batch: %w", err)
	}
	return nil
}

// Total returns the sum of all balances. Transfers never change it; only
// Credit does.
func (l *Ledger) Total() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := new(big.Int)
	for _, b := range l.balances {
		sum.Add(sum, b)
	}
	return sum
}

func (l *Ledger) add(addr common.Address, d *big.Int) {
	b, ok := l.balances[addr]
	if !ok {
		b = new(big.Int)
		l.balances[addr] = b
	}
	b.Add(b, d)
}

func addDelta(deltas map[common.Address]*big.Int, addr common.Address, d *big.Int) {
	if cur, ok := deltas[addr]; ok {
		cur.Add(cur, d)
		return
	}
	deltas[addr] = new(big.Int).Set(d)
}
