package handler

import (
	"net/http"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
)

type createWithdrawalRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type settleWithdrawalRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=completed failed"`
}

func (h *LedgerHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := h.svc.CreateWithdrawal(r.Context(), ledger.CreateWithdrawalRequest{
		AccountID:      accountID,
		Amount:         amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	observe("withdrawal.create", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, newTransactionResponse(t))
}

func (h *LedgerHandler) SettleWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req settleWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.svc.SettleWithdrawal(r.Context(), id, domain.WithdrawalOutcome(req.Outcome))
	observe("withdrawal.settle", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(t))
}
