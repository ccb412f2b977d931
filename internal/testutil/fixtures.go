package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedAccount inserts an account with the given available balance and zero
// everywhere else.
func SeedAccount(t *testing.T, db *sql.DB, available decimal.Decimal) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO accounts (id, available_balance, withdrawn_day, created_at, updated_at)
		 VALUES ($1, $2, CURRENT_DATE, NOW(), NOW())`,
		id, available,
	)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

// SeedReferralChain links referee to up to three referrers, level 1 being
// the direct one. A nil rate leaves the configured default in force.
func SeedReferralChain(t *testing.T, db *sql.DB, refereeID uuid.UUID, referrerIDs ...uuid.UUID) {
	t.Helper()

	for i, referrerID := range referrerIDs {
		_, err := db.Exec(
			`INSERT INTO referral_edges (referrer_id, referee_id, level)
			 VALUES ($1, $2, $3)`,
			referrerID, refereeID, i+1,
		)
		if err != nil {
			t.Fatalf("seed referral edge level %d: %v", i+1, err)
		}
	}
}

type AccountBalances struct {
	Available      decimal.Decimal
	Locked         decimal.Decimal
	TotalInvested  decimal.Decimal
	TotalEarned    decimal.Decimal
	TodayWithdrawn decimal.Decimal
	Version        int64
}

func GetAccountBalances(t *testing.T, db *sql.DB, id uuid.UUID) AccountBalances {
	t.Helper()

	var b AccountBalances
	err := db.QueryRow(
		`SELECT available_balance, locked_balance, total_invested, total_earned, today_withdrawn, version
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(&b.Available, &b.Locked, &b.TotalInvested, &b.TotalEarned, &b.TodayWithdrawn, &b.Version)
	if err != nil {
		t.Fatalf("get account balances: %v", err)
	}
	return b
}

func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID, txType string) int {
	t.Helper()

	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1 AND type = $2`,
		accountID, txType,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func CountAuditRecords(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE account_id = $1`, accountID,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count audit records: %v", err)
	}
	return n
}

// SeedPosition inserts an active investment position directly, bypassing the
// service, for accrual tests that need a position in a known state.
func SeedPosition(t *testing.T, db *sql.DB, accountID uuid.UUID, principal, dailyRate decimal.Decimal, maturesAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO investment_positions (id, account_id, plan_id, principal, daily_rate, status, opened_at, matures_at)
		 VALUES ($1, $2, 'plan-test', $3, $4, 'active', NOW(), $5)`,
		id, accountID, principal, dailyRate, maturesAt,
	)
	if err != nil {
		t.Fatalf("seed position: %v", err)
	}
	return id
}
