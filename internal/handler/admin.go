package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
)

type adminAdjustRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Delta     string `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *LedgerHandler) AdminAdjust(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req adminAdjustRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "account_id", Message: "must be a UUID"}})
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "delta", Message: "must be a decimal string"}})
		return
	}

	t, err := h.svc.AdminAdjustBalance(r.Context(), ledger.AdminAdjustRequest{
		AccountID:      accountID,
		Delta:          delta,
		Reason:         req.Reason,
		AdminID:        adminID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	observe("admin.adjust", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(t))
}
