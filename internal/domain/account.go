package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the single source of truth for a user's monetary state.
// Version increases by exactly one on every successful mutation and is the
// optimistic-concurrency token for every balance write.
type Account struct {
	ID               uuid.UUID
	AvailableBalance decimal.Decimal
	LockedBalance    decimal.Decimal
	TotalInvested    decimal.Decimal
	TotalEarned      decimal.Decimal
	TodayWithdrawn   decimal.Decimal
	WithdrawnDay     time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WithdrawnToday returns the amount withdrawn on the given calendar day.
// The accumulator resets implicitly: a WithdrawnDay older than day means
// nothing has been withdrawn today yet.
func (a *Account) WithdrawnToday(day time.Time) decimal.Decimal {
	if sameDay(a.WithdrawnDay, day) {
		return a.TodayWithdrawn
	}
	return decimal.Zero
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
