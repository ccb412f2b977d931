package handler

import (
	"net/http"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
)

type createDepositRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (h *LedgerHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createDepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := h.svc.CreateDeposit(r.Context(), ledger.CreateDepositRequest{
		AccountID:      accountID,
		Amount:         amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	observe("deposit.create", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, newTransactionResponse(t))
}

// ConfirmDeposit is the gateway callback surface: admin-gated, idempotent,
// safe to deliver more than once.
func (h *LedgerHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.svc.ConfirmDeposit(r.Context(), id)
	observe("deposit.confirm", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(t))
}
