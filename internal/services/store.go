package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Store is one seller's shop: a product catalog, buy orders escrowed on the
// store's own ledger account, and reviews per product.
type Store struct {
	mu        sync.Mutex
	addr      common.Address
	factory   common.Address
	owner     common.Address
	metadata  string
	createdAt time.Time
	products  []*models.StoreProduct
	orders    []*models.Order
	reviews   map[uint64][]models.Review
	registry  *Registry
	ledger    *ledger.Ledger
	auditRepo AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func newStore(
	addr, factory, owner common.Address,
	metadata string,
	createdAt time.Time,
	registry *Registry,
	auditRepo AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *Store {
	return &Store{
		addr:      addr,
		factory:   factory,
		owner:     owner,
		metadata:  metadata,
		createdAt: createdAt,
		reviews:   make(map[uint64][]models.Review),
		registry:  registry,
		ledger:    registry.Ledger(),
		auditRepo: auditRepo,
		publisher: publisher,
		log:       log.With(zap.String("store", addr.Hex())),
	}
}

func (s *Store) Address() common.Address { return s.addr }

func (s *Store) Owner() common.Address { return s.owner }

func (s *Store) Metadata() string { return s.metadata }

func (s *Store) Info() models.StoreInfo {
	return models.StoreInfo{
		Address:   s.addr,
		Owner:     s.owner,
		Metadata:  s.metadata,
		CreatedAt: s.createdAt,
	}
}

func (s *Store) onlyOwner(call Call) error {
	if call.From != s.owner {
		return fmt.Errorf("%w: %s does not own store %s", models.ErrUnauthorized, call.From.Hex(), s.addr.Hex())
	}
	return nil
}

func (s *Store) product(id uint64) (*models.StoreProduct, error) {
	if id >= uint64(len(s.products)) {
		return nil, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	return s.products[id], nil
}

func (s *Store) order(id uint64) (*models.Order, error) {
	if id >= uint64(len(s.orders)) {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, id)
	}
	return s.orders[id], nil
}

// productReviews is the stored form of one product's reviews.
type productReviews struct {
	ProductID uint64          `json:"product_id"`
	Reviews   []models.Review `json:"reviews"`
}

func (s *Store) entry(kind string, id uint64, v any) ledger.Record {
	return ledger.Record{Component: s.addr, Kind: kind, Key: idString(id), Value: v}
}

func (s *Store) reviewsEntry(productID uint64) ledger.Record {
	return s.entry(recordReviews, productID, productReviews{ProductID: productID, Reviews: s.reviews[productID]})
}

// Restore reloads the store's products, orders and reviews.
func (s *Store) Restore(ctx context.Context) error {
	products, err := loadRecords[models.StoreProduct](ctx, s.ledger, s.addr, recordProduct)
	if err != nil {
		return err
	}
	orders, err := loadRecords[models.Order](ctx, s.ledger, s.addr, recordOrder)
	if err != nil {
		return err
	}
	reviews, err := loadRecords[productReviews](ctx, s.ledger, s.addr, recordReviews)
	if err != nil {
		return err
	}

	productList, err := sequence(products, func(p *models.StoreProduct) uint64 { return p.ID })
	if err != nil {
		return fmt.Errorf("restore products of %s: %w", s.addr.Hex(), err)
	}
	orderList, err := sequence(orders, func(o *models.Order) uint64 { return o.ID })
	if err != nil {
		return fmt.Errorf("restore orders of %s: %w", s.addr.Hex(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = productList
	s.orders = orderList
	s.reviews = make(map[uint64][]models.Review, len(reviews))
	for _, r := range reviews {
		s.reviews[r.ProductID] = r.Reviews
	}
	return nil
}

func (s *Store) record(ctx context.Context, actor common.Address, entityType, entityID, action, eventType string, meta map[string]any) {
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		Actor:      actor,
		Component:  s.addr,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
	})

	payload := map[string]any{
		"store": s.addr.Hex(),
		"owner": s.owner.Hex(),
		"actor": actor.Hex(),
	}
	for k, v := range meta {
		payload[k] = v
	}
	_ = s.publisher.Publish(ctx, events.StreamStore, events.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// transitionOrder moves o to newStatus and commits it with transfers and any
// extra records. saved is o as it was before the caller's changes; o goes
// back to it when the commit fails. The caller holds s.mu.
func (s *Store) transitionOrder(ctx context.Context, o *models.Order, saved models.Order, newStatus string, actor common.Address, meta map[string]any, transfers []ledger.Transfer, extra ...ledger.Record) error {
	if !models.IsValidOrderTransition(saved.Status, newStatus) {
		*o = saved
		return fmt.Errorf("%w: order %d is %s", models.ErrWrongStatus, o.ID, o.Status)
	}

	oldStatus := saved.Status
	o.Status = newStatus
	records := append([]ledger.Record{s.entry(recordOrder, o.ID, o)}, extra...)
	if err := s.ledger.Commit(ctx, transfers, records...); err != nil {
		*o = saved
		return err
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta["order_id"] = o.ID
	meta["old_status"] = oldStatus
	meta["new_status"] = newStatus

	s.record(ctx, actor, models.EntityOrder, idString(o.ID),
		fmt.Sprintf("order_status_%s_to_%s", oldStatus, newStatus),
		events.EventOrderStatusChanged, meta)
	s.log.Info("order status changed",
		zap.Uint64("order_id", o.ID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus),
	)
	return nil
}

// AddProduct adds a catalog entry. Unlimited products always store the
// sentinel quantity regardless of the requested one.
func (s *Store) AddProduct(ctx context.Context, call Call, title, description, image string, priceUSD *big.Int, quantity uint64, kind string) (*models.StoreProduct, error) {
	if err := s.onlyOwner(call); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if !models.IsValidProductKind(kind) {
		return nil, fmt.Errorf("%w: unknown product kind %q", models.ErrInvalidArgument, kind)
	}
	if priceUSD == nil || priceUSD.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", models.ErrInvalidArgument)
	}
	if kind == models.ProductKindUnlimited {
		quantity = models.UnlimitedQuantity
	} else if quantity == 0 {
		return nil, fmt.Errorf("%w: fixed product needs a quantity", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &models.StoreProduct{
		ID:          uint64(len(s.products)),
		Title:       title,
		Description: description,
		Image:       image,
		PriceUSD:    new(big.Int).Set(priceUSD),
		Quantity:    quantity,
		Kind:        kind,
	}
	if err := s.ledger.Commit(ctx, nil, s.entry(recordProduct, p.ID, p)); err != nil {
		return nil, err
	}
	s.products = append(s.products, p)

	s.record(ctx, call.From, models.EntityProduct, idString(p.ID), "product_added", events.EventProductAdded, map[string]any{
		"product_id": p.ID,
		"title":      title,
		"price_usd":  priceUSD.String(),
		"quantity":   quantity,
		"kind":       kind,
	})

	out := p.Clone()
	return &out, nil
}

// RemoveProduct clears a product's descriptive fields. A product with open
// or in-flight orders cannot be removed.
func (s *Store) RemoveProduct(ctx context.Context, call Call, id uint64) error {
	if err := s.onlyOwner(call); err != nil {
		return err
	}
	if err := requireNoValue(call); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.product(id)
	if err != nil {
		return err
	}
	if p.Removed {
		return fmt.Errorf("%w: product %d already removed", models.ErrWrongStatus, id)
	}
	if p.Reserved > 0 || s.hasPendingOrders(id) {
		return fmt.Errorf("%w: product %d has open orders", models.ErrWrongStatus, id)
	}

	saved := p.Clone()
	p.Removed = true
	p.Title = ""
	p.Description = ""
	p.Image = ""
	p.PriceUSD = new(big.Int)
	p.Quantity = 0
	if err := s.ledger.Commit(ctx, nil, s.entry(recordProduct, id, p)); err != nil {
		*p = saved
		return err
	}

	s.record(ctx, call.From, models.EntityProduct, idString(id), "product_removed", events.EventProductRemoved, map[string]any{
		"product_id": id,
	})
	return nil
}

func (s *Store) hasPendingOrders(productID uint64) bool {
	for _, o := range s.orders {
		if o.ProductID == productID && o.Status == models.OrderStatusPending {
			return true
		}
	}
	return false
}

// CreateBuyOrder escrows convert(unit price) * quantity from the caller. Stock
// is only taken when the owner fills the order.
func (s *Store) CreateBuyOrder(ctx context.Context, call Call, productID, quantity uint64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.product(productID)
	if err != nil {
		return nil, err
	}
	if p.Removed {
		return nil, fmt.Errorf("%w: product %d is removed", models.ErrWrongStatus, productID)
	}
	if call.From == s.owner {
		return nil, fmt.Errorf("%w: owner cannot order from own store", models.ErrInvalidParty)
	}
	if quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", models.ErrInvalidArgument)
	}
	if !p.Available(quantity) {
		return nil, fmt.Errorf("%w: product %d has %d left", models.ErrOutOfStock, productID, p.Quantity)
	}

	unit, err := s.registry.ConvertPrice(ctx, p.PriceUSD)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Mul(unit, new(big.Int).SetUint64(quantity))
	if err := requireExactValue(call, total); err != nil {
		return nil, err
	}
	o := &models.Order{
		ID:        uint64(len(s.orders)),
		ProductID: productID,
		Buyer:     call.From,
		Quantity:  quantity,
		Escrow:    total,
		Status:    models.OrderStatusPending,
		CreatedAt: systemClock(),
	}
	if err := s.ledger.Commit(ctx, []ledger.Transfer{ledger.Pay(call.From, s.addr, total)}, s.entry(recordOrder, o.ID, o)); err != nil {
		return nil, err
	}
	s.orders = append(s.orders, o)

	s.record(ctx, call.From, models.EntityOrder, idString(o.ID), "order_created", events.EventOrderCreated, map[string]any{
		"order_id":   o.ID,
		"product_id": productID,
		"buyer":      call.From.Hex(),
		"quantity":   quantity,
		"escrow":     total.String(),
	})

	out := o.Clone()
	return &out, nil
}

// FillOrder takes the ordered units out of stock and marks the order sent.
// The product's reserved counter goes up by one per filled order.
func (s *Store) FillOrder(ctx context.Context, call Call, orderID uint64) (*models.Order, error) {
	if err := s.onlyOwner(call); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrWrongStatus, orderID, o.Status)
	}
	p, err := s.product(o.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Available(o.Quantity) {
		return nil, fmt.Errorf("%w: product %d has %d left", models.ErrOutOfStock, p.ID, p.Quantity)
	}

	savedProduct := p.Clone()
	if p.Kind == models.ProductKindFixed {
		p.Quantity -= o.Quantity
	}
	p.Reserved++

	if err := s.transitionOrder(ctx, o, o.Clone(), models.OrderStatusSent, call.From, map[string]any{
		"product_id": p.ID,
		"remaining":  p.Quantity,
	}, nil, s.entry(recordProduct, p.ID, p)); err != nil {
		*p = savedProduct
		return nil, err
	}

	out := o.Clone()
	return &out, nil
}

// CancelOrder refunds a pending order to its buyer. The order stays on
// record with its buyer cleared.
func (s *Store) CancelOrder(ctx context.Context, call Call, orderID uint64) (*models.Order, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrWrongStatus, orderID, o.Status)
	}
	if call.From != o.Buyer {
		return nil, fmt.Errorf("%w: only the buyer can cancel order %d", models.ErrUnauthorized, orderID)
	}

	refund := new(big.Int).Set(o.Escrow)
	saved := o.Clone()
	o.Escrow = new(big.Int)
	o.Buyer = common.Address{}
	if err := s.transitionOrder(ctx, o, saved, models.OrderStatusCancelled, call.From, map[string]any{
		"refund": refund.String(),
	}, []ledger.Transfer{ledger.Pay(s.addr, saved.Buyer, refund)}); err != nil {
		return nil, err
	}

	out := o.Clone()
	return &out, nil
}

// ConfirmReceived settles a sent order: the owner gets the escrow less the
// store fee and the product's reserved counter goes back down. Stores settle
// under their factory's registry entry.
func (s *Store) ConfirmReceived(ctx context.Context, call Call, orderID uint64) (*models.Order, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusSent {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrWrongStatus, orderID, o.Status)
	}
	if call.From != o.Buyer {
		return nil, fmt.Errorf("%w: only the buyer can confirm order %d", models.ErrUnauthorized, orderID)
	}

	payout, fee, legs, err := s.registry.settlement(models.FeeKindStore, s.factory, s.addr, s.owner, o.Escrow)
	if err != nil {
		return nil, err
	}

	p, err := s.product(o.ProductID)
	if err != nil {
		return nil, err
	}
	savedProduct := p.Clone()
	if p.Reserved > 0 {
		p.Reserved--
	}
	saved := o.Clone()
	o.Escrow = new(big.Int)
	if err := s.transitionOrder(ctx, o, saved, models.OrderStatusCompleted, call.From, map[string]any{
		"payout": payout.String(),
		"fee":    fee.String(),
	}, legs, s.entry(recordProduct, p.ID, p)); err != nil {
		*p = savedProduct
		return nil, err
	}

	out := o.Clone()
	return &out, nil
}

// LeaveReview appends the buyer's review of a completed order to its product.
// Each order can be reviewed once.
func (s *Store) LeaveReview(ctx context.Context, call Call, orderID uint64, rating int, comment string) (*models.Review, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrWrongStatus, orderID, o.Status)
	}
	if call.From != o.Buyer {
		return nil, fmt.Errorf("%w: only the buyer can review order %d", models.ErrUnauthorized, orderID)
	}
	if o.Reviewed {
		return nil, fmt.Errorf("%w: order %d", models.ErrAlreadyReviewed, orderID)
	}
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", models.ErrInvalidArgument, models.MinRating, models.MaxRating)
	}

	r := models.Review{
		Buyer:     call.From,
		OrderID:   orderID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: systemClock(),
	}
	s.reviews[o.ProductID] = append(s.reviews[o.ProductID], r)
	o.Reviewed = true
	if err := s.ledger.Commit(ctx, nil, s.entry(recordOrder, o.ID, o), s.reviewsEntry(o.ProductID)); err != nil {
		o.Reviewed = false
		s.reviews[o.ProductID] = s.reviews[o.ProductID][:len(s.reviews[o.ProductID])-1]
		return nil, err
	}

	s.record(ctx, call.From, models.EntityOrder, idString(orderID), "review_left", events.EventReviewLeft, map[string]any{
		"order_id":   orderID,
		"product_id": o.ProductID,
		"rating":     rating,
	})
	return &r, nil
}

func (s *Store) ListStoreProducts(_ context.Context) []models.StoreProduct {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.StoreProduct, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	return out
}

func (s *Store) ListStoreOrders(_ context.Context) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out
}

func (s *Store) ListProductReviews(_ context.Context, productID uint64) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.product(productID); err != nil {
		return nil, err
	}
	out := make([]models.Review, len(s.reviews[productID]))
	copy(out, s.reviews[productID])
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id uint64) (*models.StoreProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.product(id)
	if err != nil {
		return nil, err
	}
	out := p.Clone()
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, id uint64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(id)
	if err != nil {
		return nil, err
	}
	out := o.Clone()
	return &out, nil
}
