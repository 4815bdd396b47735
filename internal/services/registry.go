package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Registry owns fee configuration, the addresses of the other components and
// the price converter they share. Only the admin identity may change it.
// Settlement fees are paid to the fee sink account, and only by components
// whose address is registered.
type Registry struct {
	mu         sync.RWMutex
	admin      common.Address
	feeSink    common.Address
	fees       models.FeeConfig
	components map[string]common.Address
	converter  *oracle.Converter
	ledger     *ledger.Ledger
	auditRepo  AuditLogger
	publisher  events.Publisher
	log        *zap.Logger
}

func NewRegistry(
	admin common.Address,
	feeSink common.Address,
	fees models.FeeConfig,
	converter *oracle.Converter,
	ledger *ledger.Ledger,
	auditRepo AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *Registry {
	if fees.StoreCreationFeeUSD == nil {
		fees.StoreCreationFeeUSD = new(big.Int)
	}
	return &Registry{
		admin:      admin,
		feeSink:    feeSink,
		fees:       fees,
		components: make(map[string]common.Address),
		converter:  converter,
		ledger:     ledger,
		auditRepo:  auditRepo,
		publisher:  publisher,
		log:        log,
	}
}

func (r *Registry) authorize(call Call) error {
	if call.From != r.admin {
		return fmt.Errorf("%w: %s is not the registry admin", models.ErrUnauthorized, call.From.Hex())
	}
	return requireNoValue(call)
}

func (r *Registry) SetComponentAddress(ctx context.Context, call Call, kind string, addr common.Address) error {
	if err := r.authorize(call); err != nil {
		return err
	}
	if !models.IsValidComponentKind(kind) {
		return fmt.Errorf("%w: unknown component kind %q", models.ErrInvalidArgument, kind)
	}

	r.mu.Lock()
	old, had := r.components[kind]
	r.components[kind] = addr
	if err := r.persist(ctx); err != nil {
		if had {
			r.components[kind] = old
		} else {
			delete(r.components, kind)
		}
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.updated(ctx, call, "component_address_set", map[string]any{
		"kind": kind, "old": old.Hex(), "new": addr.Hex(),
	})
	return nil
}

func (r *Registry) SetFee(ctx context.Context, call Call, kind string, rate uint64) error {
	if err := r.authorize(call); err != nil {
		return err
	}
	if rate > models.FeeDenominator {
		return fmt.Errorf("%w: fee rate %d exceeds %d", models.ErrInvalidArgument, rate, models.FeeDenominator)
	}

	r.mu.Lock()
	saved := r.fees
	switch kind {
	case models.FeeKindMarket:
		r.fees.MarketFeeRate = rate
	case models.FeeKindAuction:
		r.fees.AuctionFeeRate = rate
	case models.FeeKindStore:
		r.fees.StoreFeeRate = rate
	default:
		r.mu.Unlock()
		return fmt.Errorf("%w: unknown fee kind %q", models.ErrInvalidArgument, kind)
	}
	if err := r.persist(ctx); err != nil {
		r.fees = saved
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.updated(ctx, call, "fee_set", map[string]any{"kind": kind, "rate": rate})
	return nil
}

func (r *Registry) SetStoreCreationFee(ctx context.Context, call Call, usd *big.Int) error {
	if err := r.authorize(call); err != nil {
		return err
	}
	if usd == nil || usd.Sign() < 0 {
		return fmt.Errorf("%w: store creation fee must be non-negative", models.ErrInvalidArgument)
	}

	r.mu.Lock()
	saved := r.fees.StoreCreationFeeUSD
	r.fees.StoreCreationFeeUSD = new(big.Int).Set(usd)
	if err := r.persist(ctx); err != nil {
		r.fees.StoreCreationFeeUSD = saved
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.updated(ctx, call, "store_creation_fee_set", map[string]any{"usd": usd.String()})
	return nil
}

// registryState is the stored form of the admin-set configuration.
type registryState struct {
	Fees       models.FeeConfig          `json:"fees"`
	Components map[string]common.Address `json:"components"`
}

// persist writes the configuration through the ledger. The caller holds r.mu.
func (r *Registry) persist(ctx context.Context) error {
	return r.ledger.Commit(ctx, nil, ledger.Record{
		Component: r.feeSink,
		Kind:      recordRegistry,
		Key:       "config",
		Value:     registryState{Fees: r.fees, Components: r.components},
	})
}

// Restore loads the stored configuration, if any, over the constructor
// defaults.
func (r *Registry) Restore(ctx context.Context) error {
	states, err := loadRecords[registryState](ctx, r.ledger, r.feeSink, recordRegistry)
	if err != nil || len(states) == 0 {
		return err
	}
	st := states[0]

	r.mu.Lock()
	defer r.mu.Unlock()

	if st.Fees.StoreCreationFeeUSD == nil {
		st.Fees.StoreCreationFeeUSD = new(big.Int)
	}
	r.fees = st.Fees
	r.components = make(map[string]common.Address, len(st.Components))
	for k, v := range st.Components {
		r.components[k] = v
	}
	r.log.Info("registry restored", zap.Int("components", len(r.components)))
	return nil
}

// WithdrawFees moves accumulated fees from the fee sink to addr.
func (r *Registry) WithdrawFees(ctx context.Context, call Call, to common.Address, amount *big.Int) error {
	if err := r.authorize(call); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", models.ErrInvalidArgument)
	}
	if err := r.ledger.Apply(ctx, ledger.Pay(r.feeSink, to, amount)); err != nil {
		return err
	}

	_ = r.auditRepo.Log(ctx, models.AuditLog{
		Actor:      call.From,
		Component:  r.feeSink,
		Action:     "fees_withdrawn",
		EntityType: models.EntityRegistry,
		EntityID:   r.feeSink.Hex(),
		Meta:       map[string]any{"to": to.Hex(), "amount": amount.String()},
	})
	_ = r.publisher.Publish(ctx, events.StreamRegistry, events.Event{
		Type:    events.EventFeesWithdrawn,
		Payload: map[string]any{"to": to.Hex(), "amount": amount.String()},
	})
	r.log.Info("fees withdrawn", zap.String("to", to.Hex()), zap.String("amount", amount.String()))
	return nil
}

func (r *Registry) updated(ctx context.Context, call Call, action string, meta map[string]any) {
	_ = r.auditRepo.Log(ctx, models.AuditLog{
		Actor:      call.From,
		Component:  r.feeSink,
		Action:     action,
		EntityType: models.EntityRegistry,
		EntityID:   r.feeSink.Hex(),
		Meta:       meta,
	})
	payload := map[string]any{"action": action}
	for k, v := range meta {
		payload[k] = v
	}
	_ = r.publisher.Publish(ctx, events.StreamRegistry, events.Event{
		Type:    events.EventRegistryUpdated,
		Payload: payload,
	})
	r.log.Info("registry updated", zap.String("action", action), zap.Any("meta", meta))
}

// FeeRate returns the parts-per-thousand rate for kind.
func (r *Registry) FeeRate(kind string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case models.FeeKindMarket:
		return r.fees.MarketFeeRate, nil
	case models.FeeKindAuction:
		return r.fees.AuctionFeeRate, nil
	case models.FeeKindStore:
		return r.fees.StoreFeeRate, nil
	}
	return 0, fmt.Errorf("%w: unknown fee kind %q", models.ErrInvalidArgument, kind)
}

func (r *Registry) StoreCreationFee() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.fees.StoreCreationFeeUSD)
}

// ComponentAddress returns the address registered for kind, or false when
// none has been set.
func (r *Registry) ComponentAddress(kind string) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.components[kind]
	return addr, ok
}

func (r *Registry) Admin() common.Address { return r.admin }

func (r *Registry) FeeSink() common.Address { return r.feeSink }

func (r *Registry) Converter() *oracle.Converter { return r.converter }

func (r *Registry) Ledger() *ledger.Ledger { return r.ledger }

func (r *Registry) Snapshot() models.RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fees := r.fees
	fees.StoreCreationFeeUSD = new(big.Int).Set(r.fees.StoreCreationFeeUSD)
	components := make(map[string]common.Address, len(r.components))
	for k, v := range r.components {
		components[k] = v
	}
	return models.RegistrySnapshot{
		Admin:      r.admin,
		FeeSink:    r.feeSink,
		Fees:       fees,
		Components: components,
	}
}

// ConvertPrice converts a USD amount at the current oracle rate.
func (r *Registry) ConvertPrice(ctx context.Context, usd *big.Int) (*big.Int, error) {
	return r.converter.ToNative(ctx, usd)
}

// feeComponents maps a fee kind to the component that settles with it.
var feeComponents = map[string]string{
	models.FeeKindMarket:  models.ComponentMarket,
	models.FeeKindAuction: models.ComponentAuction,
	models.FeeKindStore:   models.ComponentStoreFactory,
}

// requireComponent fails unless addr is the address registered for kind.
func (r *Registry) requireComponent(kind string, addr common.Address) error {
	registered, ok := r.ComponentAddress(kind)
	if !ok || registered != addr {
		return fmt.Errorf("%w: %s is not the registered %s", models.ErrUnauthorized, addr.Hex(), kind)
	}
	return nil
}

// settlement splits amount held by escrow into the recipient's payout and the
// sink's fee. component must be registered for the fee kind; stores settle
// under their factory's registration.
func (r *Registry) settlement(kind string, component, escrow, recipient common.Address, amount *big.Int) (payout, fee *big.Int, legs []ledger.Transfer, err error) {
	if err := r.requireComponent(feeComponents[kind], component); err != nil {
		return nil, nil, nil, err
	}
	rate, err := r.FeeRate(kind)
	if err != nil {
		return nil, nil, nil, err
	}
	payout, fee = models.SplitFee(amount, rate)
	legs = []ledger.Transfer{
		ledger.Pay(escrow, recipient, payout),
		ledger.Pay(escrow, r.feeSink, fee),
	}
	return payout, fee, legs, nil
}
