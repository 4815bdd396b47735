package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Fee kinds
const (
	FeeKindMarket  = "market"
	FeeKindAuction = "auction"
	FeeKindStore   = "store"
)

// FeeDenominator: fee rates are expressed in parts per thousand.
const FeeDenominator = 1000

func IsValidFeeKind(k string) bool {
	return k == FeeKindMarket || k == FeeKindAuction || k == FeeKindStore
}

// Component kinds
const (
	ComponentMarket       = "market"
	ComponentAuction      = "auction"
	ComponentStoreFactory = "store_factory"
)

func IsValidComponentKind(k string) bool {
	return k == ComponentMarket || k == ComponentAuction || k == ComponentStoreFactory
}

type FeeConfig struct {
	MarketFeeRate       uint64   `json:"market_fee_rate"`
	AuctionFeeRate      uint64   `json:"auction_fee_rate"`
	StoreFeeRate        uint64   `json:"store_fee_rate"`
	StoreCreationFeeUSD *big.Int `json:"store_creation_fee_usd"`
}

// RegistrySnapshot is a read-only view of the registry configuration.
type RegistrySnapshot struct {
	Admin      common.Address            `json:"admin"`
	FeeSink    common.Address            `json:"fee_sink"`
	Fees       FeeConfig                 `json:"fees"`
	Components map[string]common.Address `json:"components"`
}

// SplitFee divides a settled amount into the payout and the fee cut.
// payout + fee always equals amount.
func SplitFee(amount *big.Int, rate uint64) (payout, fee *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(rate))
	fee.Quo(fee, big.NewInt(FeeDenominator))
	payout = new(big.Int).Sub(amount, fee)
	return payout, fee
}
