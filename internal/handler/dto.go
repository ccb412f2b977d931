package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

var validate = validator.New()

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. It writes the error response itself and reports whether the
// handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{
					Field:   fe.Field(),
					Message: validationMessage(fe),
				})
			}
			RespondValidationError(w, fields)
			return false
		}
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

// parseAmount accepts decimal strings only. Floats in JSON lose cents; the
// API refuses them at the type level.
func parseAmount(w http.ResponseWriter, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a decimal string"}})
		return decimal.Zero, false
	}
	return amount, true
}

type accountResponse struct {
	ID               string    `json:"id"`
	AvailableBalance string    `json:"available_balance"`
	LockedBalance    string    `json:"locked_balance"`
	TotalInvested    string    `json:"total_invested"`
	TotalEarned      string    `json:"total_earned"`
	TodayWithdrawn   string    `json:"today_withdrawn"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newAccountResponse(a *domain.Account, day time.Time) accountResponse {
	return accountResponse{
		ID:               a.ID.String(),
		AvailableBalance: a.AvailableBalance.StringFixed(2),
		LockedBalance:    a.LockedBalance.StringFixed(2),
		TotalInvested:    a.TotalInvested.StringFixed(2),
		TotalEarned:      a.TotalEarned.StringFixed(2),
		TodayWithdrawn:   a.WithdrawnToday(day).StringFixed(2),
		Version:          a.Version,
		UpdatedAt:        a.UpdatedAt,
	}
}

type transactionResponse struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Amount         string          `json:"amount"`
	TaxWithheld    *string         `json:"tax_withheld,omitempty"`
	Fee            *string         `json:"fee,omitempty"`
	NetAmount      *string         `json:"net_amount,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
}

func newTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:             t.ID.String(),
		AccountID:      t.AccountID.String(),
		Type:           string(t.Type),
		Status:         string(t.Status),
		Amount:         t.Amount.StringFixed(2),
		TaxWithheld:    decimalString(t.TaxWithheld),
		Fee:            decimalString(t.Fee),
		NetAmount:      decimalString(t.NetAmount),
		IdempotencyKey: t.IdempotencyKey,
		Metadata:       t.Metadata,
		CreatedAt:      t.CreatedAt,
		SettledAt:      t.SettledAt,
	}
}

func newTransactionResponses(txns []domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, newTransactionResponse(&txns[i]))
	}
	return out
}

type positionResponse struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	PlanID    string     `json:"plan_id"`
	Principal string     `json:"principal"`
	DailyRate string     `json:"daily_rate"`
	Status    string     `json:"status"`
	OpenedAt  time.Time  `json:"opened_at"`
	MaturesAt time.Time  `json:"matures_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func newPositionResponse(p *domain.InvestmentPosition) positionResponse {
	return positionResponse{
		ID:        p.ID.String(),
		AccountID: p.AccountID.String(),
		PlanID:    p.PlanID,
		Principal: p.Principal.StringFixed(2),
		DailyRate: p.DailyRate.String(),
		Status:    string(p.Status),
		OpenedAt:  p.OpenedAt,
		MaturesAt: p.MaturesAt,
		ClosedAt:  p.ClosedAt,
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}
