package handler

import (
	"net/http"
	"strconv"

	"github.com/rupeevault/wallet-ledger/internal/auth"
	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	a, err := h.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newAccountResponse(a, h.today()))
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	q := r.URL.Query()
	filter := repository.ListFilter{
		Type:   domain.TransactionType(q.Get("type")),
		Status: domain.TransactionStatus(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	txns, total, err := h.svc.ListTransactions(r.Context(), accountID, filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"transactions": newTransactionResponses(txns),
		"total":        total,
	})
}

func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	// Non-admin callers only see their own ledger. Not-found rather than
	// forbidden, so transaction IDs do not leak.
	if t.AccountID != accountID && !auth.IsAdmin(r.Context()) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(t))
}

func (h *LedgerHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if t.AccountID != accountID && !auth.IsAdmin(r.Context()) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	cancelled, err := h.svc.CancelTransaction(r.Context(), id)
	observe("transaction.cancel", err)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, newTransactionResponse(cancelled))
}
