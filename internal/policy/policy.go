package policy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/config"
	"github.com/rupeevault/wallet-ledger/internal/domain"
)

// Evaluator holds the configured limits and rates and exposes pure,
// side-effect-free checks. Nothing here is cached across requests; callers
// re-evaluate on every command.
type Evaluator struct {
	depositMin    decimal.Decimal
	depositMax    decimal.Decimal
	withdrawalMin decimal.Decimal
	withdrawalMax decimal.Decimal
	dailyMax      decimal.Decimal

	taxRate decimal.Decimal
	fee     decimal.Decimal

	openHour  int
	closeHour int
	loc       *time.Location

	levelRates map[int]decimal.Decimal
}

func New(cfg *config.Config) (*Evaluator, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("policy.New: load timezone %q: %w", cfg.Timezone, err)
	}
	return &Evaluator{
		depositMin:    cfg.DepositMin,
		depositMax:    cfg.DepositMax,
		withdrawalMin: cfg.WithdrawalMin,
		withdrawalMax: cfg.WithdrawalMax,
		dailyMax:      cfg.DailyWithdrawalMax,
		taxRate:       cfg.TDSRate,
		fee:           cfg.WithdrawalFee,
		openHour:      cfg.WithdrawalOpenHour,
		closeHour:     cfg.WithdrawalCloseHour,
		loc:           loc,
		levelRates: map[int]decimal.Decimal{
			1: cfg.ReferralL1Rate,
			2: cfg.ReferralL2Rate,
			3: cfg.ReferralL3Rate,
		},
	}, nil
}

func (e *Evaluator) ValidateDepositAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("ValidateDepositAmount: %w", domain.ErrInvalidAmount)
	}
	if amount.LessThan(e.depositMin) || amount.GreaterThan(e.depositMax) {
		return fmt.Errorf("ValidateDepositAmount: %s not in [%s, %s]: %w",
			amount, e.depositMin, e.depositMax, domain.ErrAmountOutOfRange)
	}
	return nil
}

// ValidateWithdrawalAmount checks the per-request range and the daily cap.
// todayWithdrawn comes from the account accumulator, not from history.
func (e *Evaluator) ValidateWithdrawalAmount(amount, todayWithdrawn decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("ValidateWithdrawalAmount: %w", domain.ErrInvalidAmount)
	}
	if amount.LessThan(e.withdrawalMin) || amount.GreaterThan(e.withdrawalMax) {
		return fmt.Errorf("ValidateWithdrawalAmount: %s not in [%s, %s]: %w",
			amount, e.withdrawalMin, e.withdrawalMax, domain.ErrAmountOutOfRange)
	}
	if todayWithdrawn.Add(amount).GreaterThan(e.dailyMax) {
		return fmt.Errorf("ValidateWithdrawalAmount: %s already withdrawn today, cap %s: %w",
			todayWithdrawn, e.dailyMax, domain.ErrDailyLimitExceeded)
	}
	return nil
}

// WithinWithdrawalWindow reports whether withdrawals are open at the given
// instant: Monday through Friday, [open, close) hours, in the configured
// timezone. Weekends are always closed regardless of amount.
func (e *Evaluator) WithinWithdrawalWindow(now time.Time) bool {
	local := now.In(e.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := local.Hour()
	return h >= e.openHour && h < e.closeHour
}

// Today returns the calendar day of the given instant in the policy timezone,
// anchoring the daily-limit reset to local midnight.
func (e *Evaluator) Today(now time.Time) time.Time {
	local := now.In(e.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

type Withholding struct {
	Tax decimal.Decimal
	Fee decimal.Decimal
	Net decimal.Decimal
}

// ComputeWithholding deducts TDS and the fixed fee from a withdrawal amount.
// Tax is rounded half-up to the currency's minor unit before subtracting, so
// the split is deterministic: net + tax + fee == amount exactly.
func (e *Evaluator) ComputeWithholding(amount decimal.Decimal) Withholding {
	tax := amount.Mul(e.taxRate).Round(2)
	fee := e.fee.Round(2)
	return Withholding{
		Tax: tax,
		Fee: fee,
		Net: amount.Sub(tax).Sub(fee),
	}
}

// CommissionPlan computes one instruction per referral edge. Each level is
// rounded independently and no aggregate cap is applied. The configured
// per-level rate wins over the edge rate only when the edge carries none.
func (e *Evaluator) CommissionPlan(principal decimal.Decimal, edges []domain.ReferralEdge) []domain.CommissionInstruction {
	if principal.Sign() <= 0 {
		return nil
	}

	instructions := make([]domain.CommissionInstruction, 0, len(edges))
	for _, edge := range edges {
		rate := edge.Rate
		if rate.Sign() <= 0 {
			rate = e.levelRates[edge.Level]
		}
		if rate.Sign() <= 0 {
			continue
		}
		instructions = append(instructions, domain.CommissionInstruction{
			ReferrerID: edge.ReferrerID,
			Level:      edge.Level,
			Rate:       rate,
			Amount:     principal.Mul(rate).Round(2),
		})
	}
	return instructions
}
