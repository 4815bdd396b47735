package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// StoreFactoryService mints stores for a USD-denominated creation fee and
// keeps the store directory. Store addresses are derived from the factory
// address and a creation nonce.
type StoreFactoryService struct {
	mu        sync.RWMutex
	addr      common.Address
	nonce     uint64
	stores    []*Store
	byAddr    map[common.Address]*Store
	registry  *Registry
	auditRepo AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func NewStoreFactoryService(
	addr common.Address,
	registry *Registry,
	auditRepo AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *StoreFactoryService {
	return &StoreFactoryService{
		addr:      addr,
		byAddr:    make(map[common.Address]*Store),
		registry:  registry,
		auditRepo: auditRepo,
		publisher: publisher,
		log:       log,
	}
}

func (f *StoreFactoryService) Address() common.Address { return f.addr }

// CreationFee is the native amount CreateStore requires at the current rate.
func (f *StoreFactoryService) CreationFee(ctx context.Context) (*big.Int, error) {
	return f.registry.ConvertPrice(ctx, f.registry.StoreCreationFee())
}

// CreateStore charges the converted creation fee to the fee sink and
// registers a new store owned by the caller.
func (f *StoreFactoryService) CreateStore(ctx context.Context, call Call, metadata string) (*Store, error) {
	fee, err := f.CreationFee(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireExactValue(call, fee); err != nil {
		return nil, err
	}

	if err := f.registry.requireComponent(models.ComponentStoreFactory, f.addr); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	addr := crypto.CreateAddress(f.addr, f.nonce)
	store := newStore(addr, f.addr, call.From, metadata, systemClock(), f.registry, f.auditRepo, f.publisher, f.log)
	if err := f.registry.Ledger().Commit(ctx,
		[]ledger.Transfer{ledger.Pay(call.From, f.registry.FeeSink(), fee)},
		ledger.Record{
			Component: f.addr,
			Kind:      recordStore,
			Key:       idString(f.nonce),
			Value:     storeEntry{Nonce: f.nonce, Info: store.Info()},
		},
	); err != nil {
		return nil, err
	}

	f.nonce++
	f.stores = append(f.stores, store)
	f.byAddr[addr] = store

	_ = f.auditRepo.Log(ctx, models.AuditLog{
		Actor:      call.From,
		Component:  f.addr,
		Action:     "store_created",
		EntityType: models.EntityStore,
		EntityID:   addr.Hex(),
		Meta:       map[string]any{"metadata": metadata, "fee": fee.String()},
	})
	_ = f.publisher.Publish(ctx, events.StreamStore, events.Event{
		Type: events.EventStoreCreated,
		Payload: map[string]any{
			"store": addr.Hex(),
			"owner": call.From.Hex(),
			"fee":   fee.String(),
		},
	})
	f.log.Info("store created",
		zap.String("store", addr.Hex()),
		zap.String("owner", call.From.Hex()),
		zap.String("fee", fee.String()),
	)
	return store, nil
}

// storeEntry is the stored directory entry of one store.
type storeEntry struct {
	Nonce uint64           `json:"nonce"`
	Info  models.StoreInfo `json:"info"`
}

// Restore reloads the store directory and every store's records.
func (f *StoreFactoryService) Restore(ctx context.Context) error {
	items, err := loadRecords[storeEntry](ctx, f.registry.Ledger(), f.addr, recordStore)
	if err != nil {
		return err
	}
	entries, err := sequence(items, func(e *storeEntry) uint64 { return e.Nonce })
	if err != nil {
		return fmt.Errorf("restore stores: %w", err)
	}

	stores := make([]*Store, 0, len(entries))
	byAddr := make(map[common.Address]*Store, len(entries))
	for _, e := range entries {
		store := newStore(e.Info.Address, f.addr, e.Info.Owner, e.Info.Metadata, e.Info.CreatedAt, f.registry, f.auditRepo, f.publisher, f.log)
		if err := store.Restore(ctx); err != nil {
			return err
		}
		stores = append(stores, store)
		byAddr[store.addr] = store
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.stores = stores
	f.byAddr = byAddr
	f.nonce = uint64(len(stores))
	f.log.Info("store directory restored", zap.Int("stores", len(stores)))
	return nil
}

// ListStores returns the directory in creation order.
func (f *StoreFactoryService) ListStores(_ context.Context) []models.StoreInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]models.StoreInfo, 0, len(f.stores))
	for _, s := range f.stores {
		out = append(out, s.Info())
	}
	return out
}

func (f *StoreFactoryService) GetStore(_ context.Context, addr common.Address) (*Store, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s, ok := f.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("%w: store %s", models.ErrNotFound, addr.Hex())
	}
	return s, nil
}
