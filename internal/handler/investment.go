package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
)

type createInvestmentRequest struct {
	PlanID    string `json:"plan_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	DailyRate string `json:"daily_rate" validate:"required"`
	TermDays  int    `json:"term_days" validate:"required,gt=0"`
}

func (h *LedgerHandler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createInvestmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	rate, err := decimal.NewFromString(req.DailyRate)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "daily_rate", Message: "must be a decimal string"}})
		return
	}

	t, p, err := h.svc.DebitInvestment(r.Context(), ledger.DebitInvestmentRequest{
		AccountID:      accountID,
		PlanID:         req.PlanID,
		Amount:         amount,
		DailyRate:      rate,
		TermDays:       req.TermDays,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	observe("investment.debit", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, map[string]any{
		"transaction": newTransactionResponse(t),
		"position":    newPositionResponse(p),
	})
}

func (h *LedgerHandler) MaturePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.svc.MaturePosition(r.Context(), id)
	observe("position.mature", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(t))
}
