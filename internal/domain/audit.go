package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditRecord is one append-only trail entry written alongside every admin
// balance adjustment, in the same atomic unit. The ledger never reads it back.
type AuditRecord struct {
	ID        uuid.UUID
	AdminID   uuid.UUID
	AccountID uuid.UUID
	Delta     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}
