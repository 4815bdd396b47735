package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Listing statuses
const (
	ListingStatusInSale   = "in_sale"
	ListingStatusReserved = "reserved"
	ListingStatusShipped  = "shipped"
	ListingStatusSettled  = "settled"
	ListingStatusRemoved  = "removed"
)

// Valid listing transitions: from -> []to
var ValidListingTransitions = map[string][]string{
	ListingStatusInSale:   {ListingStatusReserved, ListingStatusRemoved},
	ListingStatusReserved: {ListingStatusInSale, ListingStatusShipped},
	ListingStatusShipped:  {ListingStatusSettled},
	ListingStatusSettled:  {},
	ListingStatusRemoved:  {},
}

func IsValidListingTransition(from, to string) bool {
	return isValidTransition(ValidListingTransitions, from, to)
}

// Listing is a single item sold through the escrow market.
// Buyer is the zero address while nobody holds a reservation.
type Listing struct {
	ID          uint64         `json:"id"`
	Seller      common.Address `json:"seller"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	PriceUSD    *big.Int       `json:"price_usd"`
	Escrow      *big.Int       `json:"escrow"`
	Buyer       common.Address `json:"buyer"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out of the market.
func (l *Listing) Clone() Listing {
	c := *l
	c.PriceUSD = cloneInt(l.PriceUSD)
	c.Escrow = cloneInt(l.Escrow)
	return c
}

func isValidTransition(table map[string][]string, from, to string) bool {
	allowed, ok := table[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
