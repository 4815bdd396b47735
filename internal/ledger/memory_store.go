package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type recordKey struct {
	component common.Address
	kind      string
	key       string
}

// MemoryStore is a Store that keeps committed state in process. A ledger
// rebuilt on the same MemoryStore sees everything committed before.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	records  map[recordKey]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[common.Address]*big.Int),
		records:  make(map[recordKey]json.RawMessage),
	}
}

func (m *MemoryStore) LoadBalances(_ context.Context) (map[common.Address]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[common.Address]*big.Int, len(m.balances))
	for addr, b := range m.balances {
		out[addr] = new(big.Int).Set(b)
	}
	return out, nil
}

func (m *MemoryStore) LoadRecords(_ context.Context, component common.Address, kind string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []json.RawMessage
	for k, data := range m.records {
		if k.component == component && k.kind == kind {
			out = append(out, append(json.RawMessage(nil), data...))
		}
	}
	return out, nil
}

func (m *MemoryStore) Commit(_ context.Context, deltas map[common.Address]*big.Int, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for addr, d := range deltas {
		b, ok := m.balances[addr]
		if !ok {
			b = new(big.Int)
			m.balances[addr] = b
		}
		b.Add(b, d)
	}
	for _, e := range entries {
		m.records[recordKey{component: e.Component, kind: e.Kind, key: e.Key}] = append(json.RawMessage(nil), e.Data...)
	}
	return nil
}
