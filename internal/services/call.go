package services

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Call carries the origin of a mutating operation and the native value the
// caller attaches to it. A nil Value means nothing is attached.
type Call struct {
	From  common.Address
	Value *big.Int
}

// NewCall is shorthand for a call without attached value.
func NewCall(from common.Address) Call {
	return Call{From: from}
}

func (c Call) amount() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.Value)
}

func (c Call) paid() bool {
	return c.Value != nil && c.Value.Sign() != 0
}

// requireNoValue rejects value attached to an operation that does not take any.
func requireNoValue(c Call) error {
	if c.paid() {
		return fmt.Errorf("%w: operation does not accept value, got %s", models.ErrPaymentMismatch, c.Value)
	}
	return nil
}

func requireExactValue(c Call, want *big.Int) error {
	if c.amount().Cmp(want) != 0 {
		return fmt.Errorf("%w: attached %s, required %s", models.ErrPaymentMismatch, c.amount(), want)
	}
	return nil
}

// AuditLogger records committed operations. repositories.AuditRepo is the
// Postgres implementation.
type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type nopAuditLogger struct{}

func (nopAuditLogger) Log(context.Context, models.AuditLog) error { return nil }

// NopAuditLogger discards audit entries.
func NopAuditLogger() AuditLogger {
	return nopAuditLogger{}
}

func systemClock() time.Time {
	return time.Now().UTC()
}

func idString(id uint64) string {
	return strconv.FormatUint(id, 10)
}
