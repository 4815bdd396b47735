package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Auction statuses
const (
	AuctionStatusOpen  = "open"
	AuctionStatusEnded = "ended"
)

var ValidAuctionTransitions = map[string][]string{
	AuctionStatusOpen:  {AuctionStatusEnded},
	AuctionStatusEnded: {},
}

func IsValidAuctionTransition(from, to string) bool {
	return isValidTransition(ValidAuctionTransitions, from, to)
}

// Auction is a time-boxed English auction. HighestBid starts at the converted
// start price; HighestBidder stays the zero address until the first bid.
type Auction struct {
	ID            uint64         `json:"id"`
	Seller        common.Address `json:"seller"`
	Description   string         `json:"description"`
	StartPriceUSD *big.Int       `json:"start_price_usd"`
	HighestBid    *big.Int       `json:"highest_bid"`
	HighestBidder common.Address `json:"highest_bidder"`
	EndTime       time.Time      `json:"end_time"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (a *Auction) Clone() Auction {
	c := *a
	c.StartPriceUSD = cloneInt(a.StartPriceUSD)
	c.HighestBid = cloneInt(a.HighestBid)
	return c
}

// HasBids reports whether anybody has bid on the auction yet.
func (a *Auction) HasBids() bool {
	return a.HighestBidder != (common.Address{})
}
