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

// MaxAuctionDuration is the longest bidding period StartAuction accepts.
const MaxAuctionDuration = 365 * 24 * time.Hour

// AuctionService runs English auctions with accumulating bids. Every bid stays
// escrowed on the service account, keyed by auction and bidder, until it is
// withdrawn or consumed by settlement.
type AuctionService struct {
	mu        sync.Mutex
	addr      common.Address
	auctions  []*models.Auction
	bids      map[uint64]map[common.Address]*big.Int
	registry  *Registry
	ledger    *ledger.Ledger
	auditRepo AuditLogger
	publisher events.Publisher
	now       func() time.Time
	log       *zap.Logger
}

// NewAuctionService builds the auction market. now defaults to the system
// clock when nil.
func NewAuctionService(
	addr common.Address,
	registry *Registry,
	auditRepo AuditLogger,
	publisher events.Publisher,
	now func() time.Time,
	log *zap.Logger,
) *AuctionService {
	if now == nil {
		now = systemClock
	}
	return &AuctionService{
		addr:      addr,
		bids:      make(map[uint64]map[common.Address]*big.Int),
		registry:  registry,
		ledger:    registry.Ledger(),
		auditRepo: auditRepo,
		publisher: publisher,
		now:       now,
		log:       log,
	}
}

func (s *AuctionService) Address() common.Address { return s.addr }

func (s *AuctionService) get(id uint64) (*models.Auction, error) {
	if id >= uint64(len(s.auctions)) {
		return nil, fmt.Errorf("%w: auction %d", models.ErrNotFound, id)
	}
	return s.auctions[id], nil
}

func (s *AuctionService) bidOf(id uint64, bidder common.Address) *big.Int {
	if b, ok := s.bids[id][bidder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (s *AuctionService) setBid(id uint64, bidder common.Address, amount *big.Int) {
	m, ok := s.bids[id]
	if !ok {
		m = make(map[common.Address]*big.Int)
		s.bids[id] = m
	}
	if amount.Sign() == 0 {
		delete(m, bidder)
		return
	}
	m[bidder] = amount
}

// auctionState is the stored form of an auction and its bid entries.
type auctionState struct {
	Auction models.Auction              `json:"auction"`
	Bids    map[common.Address]*big.Int `json:"bids"`
}

func (s *AuctionService) persist(ctx context.Context, a *models.Auction, transfers ...ledger.Transfer) error {
	return s.ledger.Commit(ctx, transfers, ledger.Record{
		Component: s.addr,
		Kind:      recordAuction,
		Key:       idString(a.ID),
		Value:     auctionState{Auction: *a, Bids: s.bids[a.ID]},
	})
}

// Restore reloads the stored auctions with their bid entries.
func (s *AuctionService) Restore(ctx context.Context) error {
	states, err := loadRecords[auctionState](ctx, s.ledger, s.addr, recordAuction)
	if err != nil {
		return err
	}
	ordered, err := sequence(states, func(st *auctionState) uint64 { return st.Auction.ID })
	if err != nil {
		return fmt.Errorf("restore auctions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions = make([]*models.Auction, len(ordered))
	s.bids = make(map[uint64]map[common.Address]*big.Int)
	for i, st := range ordered {
		a := st.Auction
		s.auctions[i] = &a
		for bidder, amount := range st.Bids {
			s.setBid(a.ID, bidder, amount)
		}
	}
	s.log.Info("auctions restored", zap.Int("auctions", len(ordered)))
	return nil
}

func (s *AuctionService) record(ctx context.Context, actor common.Address, a *models.Auction, action, eventType string, meta map[string]any) {
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		Actor:      actor,
		Component:  s.addr,
		Action:     action,
		EntityType: models.EntityAuction,
		EntityID:   idString(a.ID),
		Meta:       meta,
	})

	payload := map[string]any{
		"auction_id": a.ID,
		"seller":     a.Seller.Hex(),
		"actor":      actor.Hex(),
	}
	for k, v := range meta {
		payload[k] = v
	}
	_ = s.publisher.Publish(ctx, events.StreamAuction, events.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// StartAuction opens an auction owned by the caller that accepts bids for
// duration. The opening floor is the start price converted now.
func (s *AuctionService) StartAuction(ctx context.Context, call Call, description string, startPriceUSD *big.Int, duration time.Duration) (*models.Auction, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if startPriceUSD == nil || startPriceUSD.Sign() < 0 {
		return nil, fmt.Errorf("%w: start price must be non-negative", models.ErrInvalidArgument)
	}
	if duration < 0 || duration > MaxAuctionDuration {
		return nil, fmt.Errorf("%w: duration must be between 0 and %s", models.ErrInvalidArgument, MaxAuctionDuration)
	}

	floor, err := s.registry.ConvertPrice(ctx, startPriceUSD)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	a := &models.Auction{
		ID:            uint64(len(s.auctions)),
		Seller:        call.From,
		Description:   description,
		StartPriceUSD: new(big.Int).Set(startPriceUSD),
		HighestBid:    floor,
		EndTime:       now.Add(duration),
		Status:        models.AuctionStatusOpen,
		CreatedAt:     now,
	}
	if err := s.persist(ctx, a); err != nil {
		return nil, err
	}
	s.auctions = append(s.auctions, a)

	s.record(ctx, call.From, a, "auction_started", events.EventAuctionStarted, map[string]any{
		"seller":          call.From.Hex(),
		"start_price_usd": startPriceUSD.String(),
		"floor":           floor.String(),
		"end_time":        a.EndTime.Unix(),
	})
	s.log.Info("auction started",
		zap.Uint64("auction_id", a.ID),
		zap.String("seller", call.From.Hex()),
		zap.Time("end_time", a.EndTime),
	)

	out := a.Clone()
	return &out, nil
}

// Bid adds the attached value to the caller's accumulated bid. The new total
// must exceed the current highest bid.
func (s *AuctionService) Bid(ctx context.Context, call Call, id uint64) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AuctionStatusOpen || !s.now().Before(a.EndTime) {
		return nil, fmt.Errorf("%w: auction %d is closed for bids", models.ErrWrongStatus, id)
	}
	if call.From == a.Seller {
		return nil, fmt.Errorf("%w: seller cannot bid on own auction", models.ErrInvalidParty)
	}
	if call.Value != nil && call.Value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative bid", models.ErrInvalidArgument)
	}
	if !call.paid() {
		return nil, fmt.Errorf("%w: no value attached", models.ErrInsufficientAmount)
	}

	value := call.amount()
	total := new(big.Int).Add(s.bidOf(id, call.From), value)
	if total.Cmp(a.HighestBid) <= 0 {
		return nil, fmt.Errorf("%w: total bid %s does not exceed %s", models.ErrInsufficientAmount, total, a.HighestBid)
	}

	saved := a.Clone()
	prevBid := s.bidOf(id, call.From)
	prev := a.HighestBidder
	s.setBid(id, call.From, total)
	a.HighestBid = new(big.Int).Set(total)
	a.HighestBidder = call.From
	if err := s.persist(ctx, a, ledger.Pay(call.From, s.addr, value)); err != nil {
		*a = saved
		s.setBid(id, call.From, prevBid)
		return nil, err
	}

	s.record(ctx, call.From, a, "bid_placed", events.EventBidPlaced, map[string]any{
		"bidder": call.From.Hex(),
		"value":  value.String(),
		"total":  total.String(),
		"outbid": prev.Hex(),
	})
	s.log.Info("bid placed",
		zap.Uint64("auction_id", id),
		zap.String("bidder", call.From.Hex()),
		zap.String("total", total.String()),
	)

	out := a.Clone()
	return &out, nil
}

// WithdrawBid pays a non-winning bidder back their whole accumulated bid.
// The entry is cleared before the payout and restored if the commit fails.
func (s *AuctionService) WithdrawBid(ctx context.Context, call Call, id uint64) (*big.Int, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if a.HighestBidder == call.From && a.Status == models.AuctionStatusOpen {
		return nil, fmt.Errorf("%w: %s holds the highest bid", models.ErrNothingToWithdraw, call.From.Hex())
	}
	amount := s.bidOf(id, call.From)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: no bid from %s on auction %d", models.ErrNothingToWithdraw, call.From.Hex(), id)
	}

	s.setBid(id, call.From, new(big.Int))
	if err := s.persist(ctx, a, ledger.Pay(s.addr, call.From, amount)); err != nil {
		s.setBid(id, call.From, amount)
		return nil, err
	}

	s.record(ctx, call.From, a, "bid_withdrawn", events.EventBidWithdrawn, map[string]any{
		"bidder": call.From.Hex(),
		"amount": amount.String(),
	})
	s.log.Info("bid withdrawn",
		zap.Uint64("auction_id", id),
		zap.String("bidder", call.From.Hex()),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}

// EndAuction settles an auction whose end time has passed. The winner's bid
// goes to the seller less the auction fee; without bids nothing moves.
func (s *AuctionService) EndAuction(ctx context.Context, call Call, id uint64) (*models.Auction, error) {
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AuctionStatusOpen {
		return nil, fmt.Errorf("%w: auction %d is %s", models.ErrWrongStatus, id, a.Status)
	}
	if call.From != a.Seller {
		return nil, fmt.Errorf("%w: only the seller can end auction %d", models.ErrUnauthorized, id)
	}
	if s.now().Before(a.EndTime) {
		return nil, fmt.Errorf("%w: auction %d ends at %s", models.ErrPeriodNotReached, id, a.EndTime.Format(time.RFC3339))
	}

	if !models.IsValidAuctionTransition(a.Status, models.AuctionStatusEnded) {
		return nil, fmt.Errorf("%w: auction %d is %s", models.ErrWrongStatus, id, a.Status)
	}

	meta := map[string]any{"winner": a.HighestBidder.Hex()}
	var legs []ledger.Transfer
	winnerBid := s.bidOf(id, a.HighestBidder)
	if a.HasBids() {
		payout, fee, settleLegs, err := s.registry.settlement(models.FeeKindAuction, s.addr, s.addr, a.Seller, a.HighestBid)
		if err != nil {
			return nil, err
		}
		legs = settleLegs
		meta["amount"] = a.HighestBid.String()
		meta["payout"] = payout.String()
		meta["fee"] = fee.String()
	}

	saved := a.Clone()
	if a.HasBids() {
		s.setBid(id, a.HighestBidder, new(big.Int))
	}
	a.Status = models.AuctionStatusEnded
	if err := s.persist(ctx, a, legs...); err != nil {
		*a = saved
		if a.HasBids() {
			s.setBid(id, a.HighestBidder, winnerBid)
		}
		return nil, err
	}

	s.record(ctx, call.From, a, "auction_ended", events.EventAuctionEnded, meta)
	s.log.Info("auction ended",
		zap.Uint64("auction_id", id),
		zap.String("winner", a.HighestBidder.Hex()),
		zap.String("highest_bid", a.HighestBid.String()),
	)

	out := a.Clone()
	return &out, nil
}

// GetUserBidAmount returns the bidder's accumulated escrow on the auction.
func (s *AuctionService) GetUserBidAmount(_ context.Context, bidder common.Address, id uint64) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return nil, err
	}
	return s.bidOf(id, bidder), nil
}

func (s *AuctionService) GetAuction(_ context.Context, id uint64) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	out := a.Clone()
	return &out, nil
}

// ListAuctions returns auctions, optionally filtered by status.
func (s *AuctionService) ListAuctions(_ context.Context, status string) []models.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}

// HeldTotal sums every bidder's outstanding accumulated bid.
func (s *AuctionService) HeldTotal() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := new(big.Int)
	for _, m := range s.bids {
		for _, b := range m {
			sum.Add(sum, b)
		}
	}
	return sum
}
