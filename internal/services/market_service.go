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
	"go.uber.org/zap"
)

// MarketService is the single-item escrow market. The buyer's payment is
// held on the market's own ledger account until the listing settles or the
// reservation is cancelled.
type MarketService struct {
	mu        sync.Mutex
	addr      common.Address
	listings  []*models.Listing
	registry  *Registry
	ledger    *ledger.Ledger
	auditRepo AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func NewMarketService(
	addr common.Address,
	registry *Registry,
	auditRepo AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *MarketService {
	return &MarketService{
		addr:      addr,
		registry:  registry,
		ledger:    registry.Ledger(),
		auditRepo: auditRepo,
		publisher: publisher,
		log:       log,
	}
}

func (s *MarketService) Address() common.Address { return s.addr }

// transition moves l to newStatus and commits it together with transfers.
// saved is l as it was before the caller's changes; l goes back to it when
// the commit fails. The caller holds s.mu.
func (s *MarketService) transition(ctx context.Context, l *models.Listing, saved models.Listing, newStatus string, actor common.Address, meta map[string]any, transfers ...ledger.Transfer) error {
	if !models.IsValidListingTransition(saved.Status, newStatus) {
		*l = saved
		return fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, l.ID, l.Status)
	}

	oldStatus := saved.Status
	l.Status = newStatus
	l.UpdatedAt = systemClock()
	if err := s.persist(ctx, l, transfers...); err != nil {
		*l = saved
		return err
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta["old_status"] = oldStatus
	meta["new_status"] = newStatus

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		Actor:      actor,
		Component:  s.addr,
		Action:     fmt.Sprintf("listing_status_%s_to_%s", oldStatus, newStatus),
		EntityType: models.EntityListing,
		EntityID:   idString(l.ID),
		Meta:       meta,
	})

	payload := map[string]any{
		"listing_id": l.ID,
		"seller":     saved.Seller.Hex(),
		"actor":      actor.Hex(),
	}
	for k, v := range meta {
		payload[k] = v
	}
	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type:    events.EventListingStatusChanged,
		Payload: payload,
	})

	s.log.Info("listing status changed",
		zap.Uint64("listing_id", l.ID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus),
		zap.String("actor", actor.Hex()),
	)
	return nil
}

func (s *MarketService) persist(ctx context.Context, l *models.Listing, transfers ...ledger.Transfer) error {
	return s.ledger.Commit(ctx, transfers, ledger.Record{
		Component: s.addr,
		Kind:      recordListing,
		Key:       idString(l.ID),
		Value:     l,
	})
}

// Restore reloads the stored listings.
func (s *MarketService) Restore(ctx context.Context) error {
	items, err := loadRecords[models.Listing](ctx, s.ledger, s.addr, recordListing)
	if err != nil {
		return err
	}
	listings, err := sequence(items, func(l *models.Listing) uint64 { return l.ID })
	if err != nil {
		return fmt.Errorf("restore listings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = listings
	s.log.Info("market restored", zap.Int("listings", len(listings)))
	return nil
}

func (s *MarketService) get(id uint64) (*models.Listing, error) {
	if id >= uint64(len(s.listings)) {
		return nil, fmt.Errorf("%w: listing %d", models.ErrNotFound, id)
	}
	return s.listings[id], nil
}

// List creates a listing owned by the caller.
func (s *MarketService) List(ctx context.Context, call Call, title, description, image string, priceUSD *big.Int) (*models.Listing, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if priceUSD == nil || priceUSD.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := systemClock()
	l := &models.Listing{
		ID:          uint64(len(s.listings)),
		Seller:      call.From,
		Title:       title,
		Description: description,
		Image:       image,
		PriceUSD:    new(big.Int).Set(priceUSD),
		Escrow:      new(big.Int),
		Status:      models.ListingStatusInSale,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.persist(ctx, l); err != nil {
		return nil, err
	}
	s.listings = append(s.listings, l)

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		Actor:      call.From,
		Component:  s.addr,
		Action:     "listing_created",
		EntityType: models.EntityListing,
		EntityID:   idString(l.ID),
		Meta:       map[string]any{"title": title, "price_usd": priceUSD.String()},
	})
	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type: events.EventListingCreated,
		Payload: map[string]any{
			"listing_id": l.ID,
			"seller":     call.From.Hex(),
			"price_usd":  priceUSD.String(),
		},
	})

	out := l.Clone()
	return &out, nil
}

// Purchase reserves an in-sale listing. The attached value must equal the
// listing price converted at the current rate.
func (s *MarketService) Purchase(ctx context.Context, call Call, id uint64) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.ListingStatusInSale {
		return nil, fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, id, l.Status)
	}
	if call.From == l.Seller {
		return nil, fmt.Errorf("%w: seller cannot buy own listing", models.ErrInvalidParty)
	}

	price, err := s.registry.ConvertPrice(ctx, l.PriceUSD)
	if err != nil {
		return nil, err
	}
	if err := requireExactValue(call, price); err != nil {
		return nil, err
	}

	saved := l.Clone()
	l.Escrow = price
	l.Buyer = call.From
	if err := s.transition(ctx, l, saved, models.ListingStatusReserved, call.From, map[string]any{
		"buyer": call.From.Hex(), "escrow": price.String(),
	}, ledger.Pay(call.From, s.addr, price)); err != nil {
		return nil, err
	}

	out := l.Clone()
	return &out, nil
}

// Cancel lets the buyer release a reservation and get the escrow back.
func (s *MarketService) Cancel(ctx context.Context, call Call, id uint64) (*models.Listing, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.ListingStatusReserved {
		return nil, fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, id, l.Status)
	}
	if call.From != l.Buyer {
		return nil, fmt.Errorf("%w: only the buyer can cancel listing %d", models.ErrUnauthorized, id)
	}

	refund := new(big.Int).Set(l.Escrow)
	saved := l.Clone()
	l.Escrow = new(big.Int)
	l.Buyer = common.Address{}
	if err := s.transition(ctx, l, saved, models.ListingStatusInSale, call.From, map[string]any{
		"refund": refund.String(),
	}, ledger.Pay(s.addr, saved.Buyer, refund)); err != nil {
		return nil, err
	}

	out := l.Clone()
	return &out, nil
}

// Ship marks a reserved listing as sent by the seller.
func (s *MarketService) Ship(ctx context.Context, call Call, id uint64) (*models.Listing, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.ListingStatusReserved {
		return nil, fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, id, l.Status)
	}
	if call.From != l.Seller {
		return nil, fmt.Errorf("%w: only the seller can ship listing %d", models.ErrUnauthorized, id)
	}

	if err := s.transition(ctx, l, l.Clone(), models.ListingStatusShipped, call.From, nil); err != nil {
		return nil, err
	}
	out := l.Clone()
	return &out, nil
}

// ConfirmReceived settles a shipped listing: the seller gets the escrow less
// the market fee, the fee sink gets the fee.
func (s *MarketService) ConfirmReceived(ctx context.Context, call Call, id uint64) (*models.Listing, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.ListingStatusShipped {
		return nil, fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, id, l.Status)
	}
	if call.From != l.Buyer {
		return nil, fmt.Errorf("%w: only the buyer can confirm listing %d", models.ErrUnauthorized, id)
	}

	payout, fee, legs, err := s.registry.settlement(models.FeeKindMarket, s.addr, s.addr, l.Seller, l.Escrow)
	if err != nil {
		return nil, err
	}

	saved := l.Clone()
	l.Escrow = new(big.Int)
	if err := s.transition(ctx, l, saved, models.ListingStatusSettled, call.From, map[string]any{
		"payout": payout.String(), "fee": fee.String(),
	}, legs...); err != nil {
		return nil, err
	}

	out := l.Clone()
	return &out, nil
}

// Remove withdraws an unreserved listing for good. Its identity is kept but
// seller and content are cleared.
func (s *MarketService) Remove(ctx context.Context, call Call, id uint64) error {
	if err := requireNoValue(call); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return err
	}
	if l.Status != models.ListingStatusInSale {
		return fmt.Errorf("%w: listing %d is %s", models.ErrWrongStatus, id, l.Status)
	}
	if call.From != l.Seller {
		return fmt.Errorf("%w: only the seller can remove listing %d", models.ErrUnauthorized, id)
	}

	saved := l.Clone()
	l.Seller = common.Address{}
	l.Title = ""
	l.Description = ""
	l.Image = ""
	l.PriceUSD = new(big.Int)
	return s.transition(ctx, l, saved, models.ListingStatusRemoved, call.From, nil)
}

// ConvertPrice returns the native amount to attach when buying at usd.
func (s *MarketService) ConvertPrice(ctx context.Context, usd *big.Int) (*big.Int, error) {
	return s.registry.ConvertPrice(ctx, usd)
}

func (s *MarketService) GetListing(_ context.Context, id uint64) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	out := l.Clone()
	return &out, nil
}

// ListListings returns listings, optionally filtered by status.
func (s *MarketService) ListListings(_ context.Context, status string) []models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if status != "" && l.Status != status {
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

// EscrowTotal sums the escrow of every listing.
func (s *MarketService) EscrowTotal() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := new(big.Int)
	for _, l := range s.listings {
		sum.Add(sum, l.Escrow)
	}
	return sum
}
