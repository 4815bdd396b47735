package dto

import "time"

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// AmountResponse reports a native amount both formatted and in wei.
type AmountResponse struct {
	Amount    string `json:"amount"`
	AmountWei string `json:"amount_wei"`
}

type ConvertResponse struct {
	USD       string `json:"usd"`
	Native    string `json:"native"`
	NativeWei string `json:"native_wei"`
}

type AccountResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceWei string `json:"balance_wei"`
	IsAdmin    bool   `json:"is_admin"`
}
