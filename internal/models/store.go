package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Product kinds
const (
	ProductKindFixed     = "fixed"
	ProductKindUnlimited = "unlimited"
)

// UnlimitedQuantity is the stored quantity of every unlimited product.
const UnlimitedQuantity uint64 = 1

func IsValidProductKind(k string) bool {
	return k == ProductKindFixed || k == ProductKindUnlimited
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusSent      = "sent"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

var ValidOrderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusSent, OrderStatusCancelled},
	OrderStatusSent:      {OrderStatusCompleted},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

func IsValidOrderTransition(from, to string) bool {
	return isValidTransition(ValidOrderTransitions, from, to)
}

// StoreInfo is the directory entry the factory keeps for every store.
type StoreInfo struct {
	Address   common.Address `json:"address"`
	Owner     common.Address `json:"owner"`
	Metadata  string         `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

type StoreProduct struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	PriceUSD    *big.Int `json:"price_usd"`
	Quantity    uint64   `json:"quantity"`
	Reserved    uint64   `json:"reserved"`
	Kind        string   `json:"kind"`
	Removed     bool     `json:"removed"`
}

func (p *StoreProduct) Clone() StoreProduct {
	c := *p
	c.PriceUSD = cloneInt(p.PriceUSD)
	return c
}

// Available reports whether quantity units can still be ordered.
func (p *StoreProduct) Available(quantity uint64) bool {
	if p.Kind == ProductKindUnlimited {
		return true
	}
	return quantity <= p.Quantity
}

type Order struct {
	ID        uint64         `json:"id"`
	ProductID uint64         `json:"product_id"`
	Buyer     common.Address `json:"buyer"`
	Quantity  uint64         `json:"quantity"`
	Escrow    *big.Int       `json:"escrow"`
	Reviewed  bool           `json:"reviewed"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

func (o *Order) Clone() Order {
	c := *o
	c.Escrow = cloneInt(o.Escrow)
	return c
}

// Review ratings are accepted in this inclusive range.
const (
	MinRating = 1
	MaxRating = 10
)

type Review struct {
	Buyer     common.Address `json:"buyer"`
	OrderID   uint64         `json:"order_id"`
	Rating    int            `json:"rating"`
	Comment   string         `json:"comment"`
	CreatedAt time.Time      `json:"created_at"`
}
