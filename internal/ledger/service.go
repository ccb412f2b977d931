package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/logging"
	"github.com/rupeevault/wallet-ledger/internal/policy"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	ApplyBalances(ctx context.Context, tx *sql.Tx, a *domain.Account) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, settledAt *time.Time) error
	List(ctx context.Context, accountID uuid.UUID, filter repository.ListFilter) ([]domain.Transaction, int, error)
}

type positionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.InvestmentPosition) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentPosition, error)
	Close(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PositionStatus, closedAt time.Time) error
}

type auditRepo interface {
	Create(ctx context.Context, tx *sql.Tx, rec *domain.AuditRecord) error
}

// Distributor posts referral commissions triggered by a qualifying
// transaction. Postings are best-effort and isolated from the trigger.
type Distributor interface {
	Distribute(ctx context.Context, trigger *domain.Transaction) []domain.Transaction
}

// Service is the transaction ledger: the only entry point for balance
// mutations. Every command re-reads the account, re-evaluates policy and
// writes the new balance and the transaction record as one atomic unit,
// guarded by the account's version (optimistic CAS).
type Service struct {
	accounts     accountRepo
	transactions transactionRepo
	positions    positionRepo
	audit        auditRepo
	distributor  Distributor
	policy       *policy.Evaluator
	db           *sql.DB

	maxAttempts int
	backoffBase time.Duration

	now func() time.Time
}

func NewService(
	accounts accountRepo,
	transactions transactionRepo,
	positions positionRepo,
	audit auditRepo,
	distributor Distributor,
	eval *policy.Evaluator,
	db *sql.DB,
	maxAttempts int,
	backoffBase time.Duration,
) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		positions:    positions,
		audit:        audit,
		distributor:  distributor,
		policy:       eval,
		db:           db,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		now:          time.Now,
	}
}

func (s *Service) distribute(ctx context.Context, trigger *domain.Transaction) {
	if s.distributor == nil {
		return
	}
	posted := s.distributor.Distribute(ctx, trigger)
	if len(posted) > 0 {
		logging.FromContext(ctx).Info("referral commissions posted",
			"trigger_id", trigger.ID,
			"count", len(posted),
		)
	}
}
