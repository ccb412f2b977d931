package ledger

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeevault/wallet-ledger/internal/config"
	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/policy"
	"github.com/rupeevault/wallet-ledger/internal/repository"
	"github.com/rupeevault/wallet-ledger/internal/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() *config.Config {
	return &config.Config{
		DepositMin:          dec("130"),
		DepositMax:          dec("50000"),
		WithdrawalMin:       dec("130"),
		WithdrawalMax:       dec("50000"),
		DailyWithdrawalMax:  dec("50000"),
		TDSRate:             dec("0.18"),
		WithdrawalFee:       dec("10"),
		WithdrawalOpenHour:  9,
		WithdrawalCloseHour: 18,
		Timezone:            "Asia/Kolkata",
		ReferralL1Rate:      dec("0.16"),
		ReferralL2Rate:      dec("0.04"),
		ReferralL3Rate:      dec("0.01"),
	}
}

// insideWindow is a Monday at 10:00 IST.
var insideWindow = func() time.Time {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 8, 31, 10, 0, 0, 0, ist)
}()

func setupService(t *testing.T, db *sql.DB) *Service {
	t.Helper()

	eval, err := policy.New(testConfig())
	require.NoError(t, err)

	svc := NewService(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewPositionRepository(db),
		repository.NewAuditRepository(db),
		nil,
		eval,
		db,
		5,
		2*time.Millisecond,
	)
	svc.now = func() time.Time { return insideWindow }
	return svc
}

func TestDepositLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))

	created, err := svc.CreateDeposit(ctx, CreateDepositRequest{
		AccountID:      acct,
		Amount:         dec("1000"),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, created.Status)
	assert.True(t, created.Amount.Equal(dec("1000")))

	// Pending deposits do not touch the balance.
	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.IsZero())
	assert.Equal(t, int64(1), b.Version)

	confirmed, err := svc.ConfirmDeposit(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, confirmed.Status)
	assert.NotNil(t, confirmed.SettledAt)

	b = testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("1000")))
	assert.Equal(t, int64(2), b.Version)
}

func TestConfirmDeposit_DuplicateConfirmIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	created, err := svc.CreateDeposit(ctx, CreateDepositRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.ConfirmDeposit(ctx, created.ID)
	require.NoError(t, err)
	again, err := svc.ConfirmDeposit(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, again.Status)

	// Credited exactly once.
	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("500")), "balance: %s", b.Available)
}

func TestCreateDeposit_Replay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	key := uuid.NewString()

	first, err := svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("1000"), IdempotencyKey: key})
	require.NoError(t, err)

	second, err := svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("1000"), IdempotencyKey: key})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, testutil.CountTransactions(t, db, acct, "deposit"))
}

func TestCreateDeposit_KeyReuseWithDifferentBody(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	key := uuid.NewString()

	_, err := svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("1000"), IdempotencyKey: key})
	require.NoError(t, err)

	_, err = svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("2000"), IdempotencyKey: key})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestCreateDeposit_AmountOutOfRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))

	_, err := svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("129.99"), IdempotencyKey: uuid.NewString()})
	assert.ErrorIs(t, err, domain.ErrAmountOutOfRange)

	_, err = svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("50000.01"), IdempotencyKey: uuid.NewString()})
	assert.ErrorIs(t, err, domain.ErrAmountOutOfRange)
}

func TestCancelTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	created, err := svc.CreateDeposit(ctx, CreateDepositRequest{AccountID: acct, Amount: dec("1000"), IdempotencyKey: uuid.NewString()})
	require.NoError(t, err)

	cancelled, err := svc.CancelTransaction(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCancelled, cancelled.Status)

	// Cancel replay is a no-op, confirm after cancel is refused, and the
	// balance never moved.
	again, err := svc.CancelTransaction(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCancelled, again.Status)

	_, err = svc.ConfirmDeposit(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionTerminal)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.IsZero())
}

func TestCreateWithdrawal_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))

	w, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusProcessing, w.Status)
	assert.True(t, w.Amount.Equal(dec("-500")))
	require.NotNil(t, w.TaxWithheld)
	require.NotNil(t, w.Fee)
	require.NotNil(t, w.NetAmount)
	assert.True(t, w.TaxWithheld.Equal(dec("90")), "tax: %s", w.TaxWithheld)
	assert.True(t, w.Fee.Equal(dec("10")))
	assert.True(t, w.NetAmount.Equal(dec("400")))

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("500")))
	assert.True(t, b.Locked.Equal(dec("500")))
	assert.True(t, b.TodayWithdrawn.Equal(dec("500")))
}

func TestCreateWithdrawal_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("400"))

	_, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("400")))
	assert.Equal(t, int64(1), b.Version)
}

func TestCreateWithdrawal_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
				AccountID:      acct,
				Amount:         dec("800"),
				IdempotencyKey: uuid.NewString(),
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failures++
		}
	}
	assert.Equal(t, 1, successes, "exactly one withdrawal should win")
	assert.Equal(t, 1, failures)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("200")), "available: %s", b.Available)
	assert.True(t, b.Locked.Equal(dec("800")))
}

func TestCreateWithdrawal_OutsideWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))

	// Saturday midday.
	svc.now = func() time.Time { return insideWindow.AddDate(0, 0, 5) }

	_, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrOutsideWindow)
}

func TestCreateWithdrawal_RetryAfterWindowOpens(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))
	key := uuid.NewString()

	// Saturday midday: rejected, and no transaction row is written.
	svc.now = func() time.Time { return insideWindow.AddDate(0, 0, 5) }
	_, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: key,
	})
	require.ErrorIs(t, err, domain.ErrOutsideWindow)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, acct, "withdrawal"))

	// Monday: the same key is still unused, so the retry goes through.
	svc.now = func() time.Time { return insideWindow }
	created, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("500"),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusProcessing, created.Status)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("500")))
	assert.True(t, b.Locked.Equal(dec("500")))
}

func TestCreateWithdrawal_DailyLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("100000"))

	_, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("30000"),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("20001"),
		IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrDailyLimitExceeded)

	// Exactly at the cap still fits.
	_, err = svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID:      acct,
		Amount:         dec("20000"),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
}

func TestSettleWithdrawal_Completed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))
	w, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID: acct, Amount: dec("500"), IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	settled, err := svc.SettleWithdrawal(ctx, w.ID, domain.WithdrawalOutcomeCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, settled.Status)
	assert.NotNil(t, settled.SettledAt)

	// The locked funds leave the system; the daily accumulator stays spent.
	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("500")))
	assert.True(t, b.Locked.IsZero())
	assert.True(t, b.TodayWithdrawn.Equal(dec("500")))

	// Same-outcome duplicate settle replays.
	again, err := svc.SettleWithdrawal(ctx, w.ID, domain.WithdrawalOutcomeCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, again.Status)

	// Opposite outcome after settlement is refused.
	_, err = svc.SettleWithdrawal(ctx, w.ID, domain.WithdrawalOutcomeFailed)
	assert.ErrorIs(t, err, domain.ErrTransactionTerminal)
}

func TestSettleWithdrawal_FailedRefunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))
	w, err := svc.CreateWithdrawal(ctx, CreateWithdrawalRequest{
		AccountID: acct, Amount: dec("500"), IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	settled, err := svc.SettleWithdrawal(ctx, w.ID, domain.WithdrawalOutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, settled.Status)

	// Full refund including the daily accumulator.
	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("1000")))
	assert.True(t, b.Locked.IsZero())
	assert.True(t, b.TodayWithdrawn.IsZero())
}

func TestDebitInvestment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("5000"))

	txn, pos, err := svc.DebitInvestment(ctx, DebitInvestmentRequest{
		AccountID:      acct,
		PlanID:         "plan-90d",
		Amount:         dec("2000"),
		DailyRate:      dec("0.003"),
		TermDays:       90,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.True(t, txn.Amount.Equal(dec("-2000")))
	assert.Equal(t, domain.PositionStatusActive, pos.Status)
	assert.True(t, pos.Principal.Equal(dec("2000")))
	assert.Equal(t, pos.OpenedAt.AddDate(0, 0, 90), pos.MaturesAt)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("3000")))
	assert.True(t, b.TotalInvested.Equal(dec("2000")))
}

func TestDebitInvestment_Replay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("5000"))
	key := uuid.NewString()
	req := DebitInvestmentRequest{
		AccountID: acct, PlanID: "plan-90d", Amount: dec("2000"),
		DailyRate: dec("0.003"), TermDays: 90, IdempotencyKey: key,
	}

	_, firstPos, err := svc.DebitInvestment(ctx, req)
	require.NoError(t, err)
	_, secondPos, err := svc.DebitInvestment(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, firstPos.ID, secondPos.ID)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("3000")), "debited once, not twice: %s", b.Available)
}

func TestDebitInvestment_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))

	_, _, err := svc.DebitInvestment(ctx, DebitInvestmentRequest{
		AccountID: acct, PlanID: "plan-90d", Amount: dec("2000"),
		DailyRate: dec("0.003"), TermDays: 90, IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// No position opened either: the debit and the position are atomic.
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM investment_positions WHERE account_id = $1`, acct).Scan(&n))
	assert.Zero(t, n)
}

func TestCreditInvestmentEarnings_ReplaysOnSameKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	pos := testutil.SeedPosition(t, db, acct, dec("2000"), dec("0.003"), time.Now().AddDate(0, 0, 90))

	key := "accr:" + pos.String() + ":2026-08-31"
	req := CreditEarningsRequest{PositionID: pos, Amount: dec("6.00"), IdempotencyKey: key}

	_, err := svc.CreditInvestmentEarnings(ctx, req)
	require.NoError(t, err)
	_, err = svc.CreditInvestmentEarnings(ctx, req)
	require.NoError(t, err)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("6.00")), "credited once: %s", b.Available)
	assert.True(t, b.TotalEarned.Equal(dec("6.00")))
}

func TestMaturePosition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("0"))
	pos := testutil.SeedPosition(t, db, acct, dec("2000"), dec("0.003"), time.Now().AddDate(0, 0, -1))
	_, err := db.Exec(`UPDATE accounts SET total_invested = 2000 WHERE id = $1`, acct)
	require.NoError(t, err)

	refund, err := svc.MaturePosition(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeRefund, refund.Type)
	assert.True(t, refund.Amount.Equal(dec("2000")))

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("2000")))
	assert.True(t, b.TotalInvested.IsZero())

	// Second maturity call replays the first refund.
	again, err := svc.MaturePosition(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, again.ID)

	b = testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("2000")), "principal returned once: %s", b.Available)
}

func TestAdminAdjustBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("1000"))
	adminID := uuid.New()

	txn, err := svc.AdminAdjustBalance(ctx, AdminAdjustRequest{
		AccountID:      acct,
		Delta:          dec("-250"),
		Reason:         "chargeback correction",
		AdminID:        adminID,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeAdminAdjust, txn.Type)

	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("750")))
	assert.Equal(t, 1, testutil.CountAuditRecords(t, db, acct))
}

func TestAdminAdjustBalance_NeverBelowZero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("100"))

	_, err := svc.AdminAdjustBalance(ctx, AdminAdjustRequest{
		AccountID:      acct,
		Delta:          dec("-200"),
		Reason:         "bad correction",
		AdminID:        uuid.New(),
		IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Refused atomically: no transaction, no audit record, no balance change.
	b := testutil.GetAccountBalances(t, db, acct)
	assert.True(t, b.Available.Equal(dec("100")))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, acct, "admin_adjust"))
	assert.Equal(t, 0, testutil.CountAuditRecords(t, db, acct))
}

func TestAdminAdjustBalance_RequiresReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, dec("100"))

	_, err := svc.AdminAdjustBalance(ctx, AdminAdjustRequest{
		AccountID:      acct,
		Delta:          dec("50"),
		AdminID:        uuid.New(),
		IdempotencyKey: uuid.NewString(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
