package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
	"github.com/rupeevault/wallet-ledger/internal/metrics"
	"github.com/rupeevault/wallet-ledger/internal/policy"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

type ledgerService interface {
	CreateDeposit(ctx context.Context, req ledger.CreateDepositRequest) (*domain.Transaction, error)
	ConfirmDeposit(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	CancelTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	CreateWithdrawal(ctx context.Context, req ledger.CreateWithdrawalRequest) (*domain.Transaction, error)
	SettleWithdrawal(ctx context.Context, transactionID uuid.UUID, outcome domain.WithdrawalOutcome) (*domain.Transaction, error)
	DebitInvestment(ctx context.Context, req ledger.DebitInvestmentRequest) (*domain.Transaction, *domain.InvestmentPosition, error)
	MaturePosition(ctx context.Context, positionID uuid.UUID) (*domain.Transaction, error)
	AdminAdjustBalance(ctx context.Context, req ledger.AdminAdjustRequest) (*domain.Transaction, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter repository.ListFilter) ([]domain.Transaction, int, error)
}

type LedgerHandler struct {
	svc    ledgerService
	policy *policy.Evaluator
}

func NewLedgerHandler(svc ledgerService, eval *policy.Evaluator) *LedgerHandler {
	return &LedgerHandler{svc: svc, policy: eval}
}

// observe bumps the command counter and is paired with every mutating
// endpoint.
func observe(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.CommandsTotal.WithLabelValues(command, outcome).Inc()
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *LedgerHandler) today() time.Time {
	return h.policy.Today(time.Now())
}
