package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	PositionStatusActive    PositionStatus = "active"
	PositionStatusMatured   PositionStatus = "matured"
	PositionStatusCancelled PositionStatus = "cancelled"
)

// InvestmentPosition is opened by a committed investment_debit transaction
// and closed (matured or cancelled) by a later settlement transaction. It is
// owned exclusively by the account that opened it.
type InvestmentPosition struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	PlanID    string
	Principal decimal.Decimal
	DailyRate decimal.Decimal
	Status    PositionStatus
	OpenedAt  time.Time
	MaturesAt time.Time
	ClosedAt  *time.Time
}
