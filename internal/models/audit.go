package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Entity types recorded in the audit journal.
const (
	EntityListing  = "listing"
	EntityAuction  = "auction"
	EntityStore    = "store"
	EntityProduct  = "store_product"
	EntityOrder    = "store_order"
	EntityRegistry = "registry"
)

// AuditLog is one committed operation.
type AuditLog struct {
	ID         uuid.UUID      `json:"id"`
	Actor      common.Address `json:"actor"`
	Component  common.Address `json:"component"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
