package events

import (
	"context"
	"sync"
)

// Streams, one per component.
const (
	StreamMarket   = "events:market"
	StreamAuction  = "events:auction"
	StreamStore    = "events:store"
	StreamRegistry = "events:registry"
)

// AllStreams lists every stream a consumer may subscribe to.
var AllStreams = []string{StreamMarket, StreamAuction, StreamStore, StreamRegistry}

// Event types
const (
	EventListingCreated       = "listing_created"
	EventListingStatusChanged = "listing_status_changed"
	EventAuctionStarted       = "auction_started"
	EventBidPlaced            = "bid_placed"
	EventBidWithdrawn         = "bid_withdrawn"
	EventAuctionEnded         = "auction_ended"
	EventAuctionPeriodReached = "auction_period_reached"
	EventStoreCreated         = "store_created"
	EventProductAdded         = "product_added"
	EventProductRemoved       = "product_removed"
	EventOrderCreated         = "order_created"
	EventOrderStatusChanged   = "order_status_changed"
	EventReviewLeft           = "review_left"
	EventRegistryUpdated      = "registry_updated"
	EventFeesWithdrawn        = "fees_withdrawn"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Recorded is an event captured by MemoryPublisher together with its stream.
type Recorded struct {
	Stream string
	Event  Event
}

// MemoryPublisher keeps published events in process and fans them out to
// local subscribers. It backs tests and runs without redis.
type MemoryPublisher struct {
	mu       sync.Mutex
	events   []Recorded
	handlers map[string][]subscription
}

type subscription struct {
	ctx     context.Context
	handler func(Event)
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, stream string, event Event) error {
	p.mu.Lock()
	p.events = append(p.events, Recorded{Stream: stream, Event: event})
	subs := append([]subscription(nil), p.handlers[stream]...)
	p.mu.Unlock()

	for _, sub := range subs {
		if sub.ctx.Err() == nil {
			sub.handler(event)
		}
	}
	return nil
}

// Subscribe registers handler for stream until ctx is done. Handlers run
// synchronously on the publishing goroutine.
func (p *MemoryPublisher) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handlers == nil {
		p.handlers = make(map[string][]subscription)
	}
	p.handlers[stream] = append(p.handlers[stream], subscription{ctx: ctx, handler: handler})
	return nil
}

func (p *MemoryPublisher) Events() []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Recorded, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the event types published so far, in order.
func (p *MemoryPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, r := range p.events {
		out = append(out, r.Event.Type)
	}
	return out
}
