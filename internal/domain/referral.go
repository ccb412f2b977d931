package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferralEdge is a directed relationship from referrer to referee at a given
// commission level. Edges are created at referee signup and read-only here.
type ReferralEdge struct {
	ReferrerID uuid.UUID
	RefereeID  uuid.UUID
	Level      int
	Rate       decimal.Decimal
}

// CommissionInstruction is one independently roundable per-level credit
// computed from a qualifying transaction's principal.
type CommissionInstruction struct {
	ReferrerID uuid.UUID
	Level      int
	Rate       decimal.Decimal
	Amount     decimal.Decimal
}
