package policy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeevault/wallet-ledger/internal/config"
	"github.com/rupeevault/wallet-ledger/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := New(&config.Config{
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
	})
	require.NoError(t, err)
	return e
}

func TestValidateDepositAmount(t *testing.T) {
	e := newEvaluator(t)

	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "at minimum", amount: "130"},
		{name: "at maximum", amount: "50000"},
		{name: "in range", amount: "1000.50"},
		{name: "below minimum", amount: "129.99", wantErr: domain.ErrAmountOutOfRange},
		{name: "above maximum", amount: "50000.01", wantErr: domain.ErrAmountOutOfRange},
		{name: "zero", amount: "0", wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: "-100", wantErr: domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ValidateDepositAmount(dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateWithdrawalAmount_DailyLimit(t *testing.T) {
	e := newEvaluator(t)

	assert.NoError(t, e.ValidateWithdrawalAmount(dec("20000"), dec("30000")))
	assert.ErrorIs(t, e.ValidateWithdrawalAmount(dec("20000.01"), dec("30000")), domain.ErrDailyLimitExceeded)
	assert.ErrorIs(t, e.ValidateWithdrawalAmount(dec("130"), dec("50000")), domain.ErrDailyLimitExceeded)
}

func TestWithinWithdrawalWindow(t *testing.T) {
	e := newEvaluator(t)
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday morning open", time.Date(2026, 8, 31, 9, 0, 0, 0, ist), true},
		{"friday before close", time.Date(2026, 9, 4, 17, 59, 59, 0, ist), true},
		{"weekday before open", time.Date(2026, 8, 31, 8, 59, 0, 0, ist), false},
		{"weekday at close", time.Date(2026, 8, 31, 18, 0, 0, 0, ist), false},
		{"weekday evening", time.Date(2026, 8, 31, 20, 0, 0, 0, ist), false},
		{"saturday midday", time.Date(2026, 9, 5, 12, 0, 0, 0, ist), false},
		{"sunday midday", time.Date(2026, 9, 6, 12, 0, 0, 0, ist), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.WithinWithdrawalWindow(tt.at))
		})
	}
}

func TestWithinWithdrawalWindow_ConvertsToPolicyTimezone(t *testing.T) {
	e := newEvaluator(t)

	// 05:00 UTC on a Monday is 10:30 IST, inside the window.
	assert.True(t, e.WithinWithdrawalWindow(time.Date(2026, 8, 31, 5, 0, 0, 0, time.UTC)))
	// 14:00 UTC is 19:30 IST, outside.
	assert.False(t, e.WithinWithdrawalWindow(time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)))
}

func TestComputeWithholding(t *testing.T) {
	e := newEvaluator(t)

	w := e.ComputeWithholding(dec("1000"))
	assert.True(t, w.Tax.Equal(dec("180")), "tax: %s", w.Tax)
	assert.True(t, w.Fee.Equal(dec("10")), "fee: %s", w.Fee)
	assert.True(t, w.Net.Equal(dec("810")), "net: %s", w.Net)

	// The split reassembles to the gross amount exactly, even when the tax
	// needed rounding.
	w = e.ComputeWithholding(dec("133.33"))
	assert.True(t, w.Tax.Add(w.Fee).Add(w.Net).Equal(dec("133.33")))
}

func TestCommissionPlan(t *testing.T) {
	e := newEvaluator(t)
	l1, l2, l3 := uuid.New(), uuid.New(), uuid.New()

	edges := []domain.ReferralEdge{
		{ReferrerID: l1, Level: 1},
		{ReferrerID: l2, Level: 2},
		{ReferrerID: l3, Level: 3},
	}

	plan := e.CommissionPlan(dec("1000"), edges)
	require.Len(t, plan, 3)

	assert.Equal(t, l1, plan[0].ReferrerID)
	assert.True(t, plan[0].Amount.Equal(dec("160")), "l1: %s", plan[0].Amount)
	assert.True(t, plan[1].Amount.Equal(dec("40")), "l2: %s", plan[1].Amount)
	assert.True(t, plan[2].Amount.Equal(dec("10")), "l3: %s", plan[2].Amount)
}

func TestCommissionPlan_EdgeRateOverridesDefault(t *testing.T) {
	e := newEvaluator(t)
	referrer := uuid.New()

	plan := e.CommissionPlan(dec("1000"), []domain.ReferralEdge{
		{ReferrerID: referrer, Level: 1, Rate: dec("0.20")},
	})
	require.Len(t, plan, 1)
	assert.True(t, plan[0].Amount.Equal(dec("200")))
	assert.True(t, plan[0].Rate.Equal(dec("0.20")))
}

func TestCommissionPlan_NoEdgesNoPlan(t *testing.T) {
	e := newEvaluator(t)

	assert.Empty(t, e.CommissionPlan(dec("1000"), nil))
	assert.Empty(t, e.CommissionPlan(dec("0"), []domain.ReferralEdge{{ReferrerID: uuid.New(), Level: 1}}))
}
