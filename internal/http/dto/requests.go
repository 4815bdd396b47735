package dto

// Amounts are decimal strings. USD fields take dollars ("12.5"); native
// value fields take whole units ("0.5") or raw wei with a "wei:" prefix.

type NonceRequest struct {
	Address string `json:"address"`
}

type LoginRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // 0x-prefixed, 65 bytes
}

// PaymentRequest is the body of any operation that may carry value.
type PaymentRequest struct {
	Value string `json:"value,omitempty"`
}

type CreateListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	PriceUSD    string `json:"price_usd"`
}

type StartAuctionRequest struct {
	Description     string `json:"description"`
	StartPriceUSD   string `json:"start_price_usd"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type CreateStoreRequest struct {
	Metadata string `json:"metadata"`
	Value    string `json:"value"`
}

type AddProductRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	PriceUSD    string `json:"price_usd"`
	Quantity    uint64 `json:"quantity"`
	Kind        string `json:"kind"` // fixed / unlimited
}

type CreateOrderRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  uint64 `json:"quantity"`
	Value     string `json:"value"`
}

type LeaveReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Registry administration

type SetComponentAddressRequest struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
}

type SetFeeRequest struct {
	Kind string `json:"kind"`
	Rate uint64 `json:"rate"`
}

type SetStoreCreationFeeRequest struct {
	USD string `json:"usd"`
}

type WithdrawFeesRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type CreditRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}
