package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// LoginNonce is a one-time challenge an address signs to obtain a session.
type LoginNonce struct {
	ID        uuid.UUID      `json:"id"`
	Address   common.Address `json:"address"`
	Nonce     string         `json:"nonce"`
	CreatedAt time.Time      `json:"-"`
	ExpiresAt time.Time      `json:"expires_at"`
	Used      bool           `json:"-"`
}

// LoginMessage is the text the wallet signs for nonce.
func LoginMessage(domain, nonce string) string {
	return "Sign in to " + domain + "\nNonce: " + nonce
}
