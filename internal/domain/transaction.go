package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit            TransactionType = "deposit"
	TransactionTypeWithdrawal         TransactionType = "withdrawal"
	TransactionTypeInvestmentDebit    TransactionType = "investment_debit"
	TransactionTypeInvestmentCredit   TransactionType = "investment_credit"
	TransactionTypeAdminAdjust        TransactionType = "admin_adjust"
	TransactionTypeReferralCommission TransactionType = "referral_commission"
	TransactionTypeRefund             TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// Terminal statuses are immutable once reached.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

type WithdrawalOutcome string

const (
	WithdrawalOutcomeCompleted WithdrawalOutcome = "completed"
	WithdrawalOutcomeFailed    WithdrawalOutcome = "failed"
)

// Transaction records one monetary movement. Amount is signed: credits
// positive, debits negative. TaxWithheld/Fee/NetAmount are set only for
// withdrawals. A (AccountID, IdempotencyKey) pair maps to at most one
// Transaction, ever; RequestHash detects key reuse with a different request.
type Transaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Type           TransactionType
	Amount         decimal.Decimal
	Status         TransactionStatus
	IdempotencyKey string
	RequestHash    string
	TaxWithheld    *decimal.Decimal
	Fee            *decimal.Decimal
	NetAmount      *decimal.Decimal
	Metadata       json.RawMessage
	CreatedAt      time.Time
	SettledAt      *time.Time
}
