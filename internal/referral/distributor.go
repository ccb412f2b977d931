package referral

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/logging"
	"github.com/rupeevault/wallet-ledger/internal/metrics"
	"github.com/rupeevault/wallet-ledger/internal/policy"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

type accountRepo interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	ApplyBalances(ctx context.Context, tx *sql.Tx, a *domain.Account) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error)
}

type edgeRepo interface {
	EdgesForReferee(ctx context.Context, refereeID uuid.UUID) ([]domain.ReferralEdge, error)
}

// Distributor posts multi-level referral commissions after a qualifying
// transaction commits. Every per-level credit is its own atomic unit against
// a distinct referrer account: a failure at one level never rolls back the
// others or the trigger. Failures past the retry bound are recorded as
// failed transactions, not dropped.
type Distributor struct {
	accounts     accountRepo
	transactions transactionRepo
	edges        edgeRepo
	policy       *policy.Evaluator
	db           *sql.DB

	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time
}

func NewDistributor(
	accounts accountRepo,
	transactions transactionRepo,
	edges edgeRepo,
	eval *policy.Evaluator,
	db *sql.DB,
	maxAttempts int,
	backoffBase time.Duration,
) *Distributor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Distributor{
		accounts:     accounts,
		transactions: transactions,
		edges:        edges,
		policy:       eval,
		db:           db,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		now:          time.Now,
	}
}

func (d *Distributor) Distribute(ctx context.Context, trigger *domain.Transaction) []domain.Transaction {
	log := logging.FromContext(ctx)

	if trigger.Type != domain.TransactionTypeDeposit && trigger.Type != domain.TransactionTypeInvestmentDebit {
		return nil
	}

	edges, err := d.edges.EdgesForReferee(ctx, trigger.AccountID)
	if err != nil {
		log.Error("referral edge lookup failed", "trigger_id", trigger.ID, "error", err)
		return nil
	}

	principal := trigger.Amount.Abs()
	instructions := d.policy.CommissionPlan(principal, edges)

	var posted []domain.Transaction
	for _, ins := range instructions {
		t, err := d.postCommission(ctx, trigger, ins)
		if err != nil {
			metrics.CommissionPostings.WithLabelValues("failed").Inc()
			log.Error("referral commission failed",
				"trigger_id", trigger.ID,
				"referrer_id", ins.ReferrerID,
				"level", ins.Level,
				"amount", ins.Amount,
				"error", err,
			)
			d.recordFailure(ctx, trigger, ins, err)
			continue
		}
		metrics.CommissionPostings.WithLabelValues("posted").Inc()
		posted = append(posted, *t)
	}
	return posted
}

// postCommission credits one referrer in its own transaction, retrying
// transient version conflicts up to the bound. The idempotency key is
// derived from the trigger and level, so a re-run of Distribute replays
// instead of double-crediting.
func (d *Distributor) postCommission(ctx context.Context, trigger *domain.Transaction, ins domain.CommissionInstruction) (*domain.Transaction, error) {
	key := commissionKey(trigger.ID, ins.Level)
	hash := commissionHash(trigger.ID, ins.Level, ins.Amount.String())

	existing, err := d.transactions.GetByIdempotencyKey(ctx, ins.ReferrerID, key)
	if err != nil {
		return nil, fmt.Errorf("postCommission: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var created *domain.Transaction
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter(d.backoffBase, attempt)):
			}
		}

		created, err = d.creditOnce(ctx, trigger, ins, key, hash)
		if err == nil {
			return created, nil
		}
		if repository.IsUniqueViolation(err) {
			replay, rerr := d.transactions.GetByIdempotencyKey(ctx, ins.ReferrerID, key)
			if rerr != nil {
				return nil, fmt.Errorf("postCommission: %w", rerr)
			}
			if replay != nil {
				return replay, nil
			}
			return nil, fmt.Errorf("postCommission: %w", err)
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("postCommission: %w", err)
		}
	}
	metrics.CASRetriesExhausted.Inc()
	return nil, fmt.Errorf("postCommission: %d attempts: %w", d.maxAttempts, domain.ErrConflict)
}

func (d *Distributor) creditOnce(ctx context.Context, trigger *domain.Transaction, ins domain.CommissionInstruction, key, hash string) (*domain.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("creditOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := d.accounts.GetByIDTx(ctx, tx, ins.ReferrerID)
	if err != nil {
		return nil, err
	}

	nowUTC := d.now().UTC()

	next := *acct
	next.AvailableBalance = acct.AvailableBalance.Add(ins.Amount)
	next.TotalEarned = acct.TotalEarned.Add(ins.Amount)
	next.Version++
	next.UpdatedAt = nowUTC

	if err := d.accounts.ApplyBalances(ctx, tx, &next); err != nil {
		return nil, err
	}

	now := nowUTC
	created := &domain.Transaction{
		ID:             uuid.New(),
		AccountID:      ins.ReferrerID,
		Type:           domain.TransactionTypeReferralCommission,
		Amount:         ins.Amount,
		Status:         domain.TransactionStatusCompleted,
		IdempotencyKey: key,
		RequestHash:    hash,
		Metadata:       commissionMetadata(trigger, ins, ""),
		CreatedAt:      nowUTC,
		SettledAt:      &now,
	}
	if err := d.transactions.Create(ctx, tx, created); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("creditOnce: commit: %w", err)
	}
	return created, nil
}

// recordFailure writes a failed commission transaction so the miss is
// reported rather than silently dropped. Best effort: if even this write
// fails the error is logged and the loop moves on.
func (d *Distributor) recordFailure(ctx context.Context, trigger *domain.Transaction, ins domain.CommissionInstruction, cause error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		logging.FromContext(ctx).Error("commission failure record: begin tx", "error", err)
		return
	}
	defer tx.Rollback()

	failed := &domain.Transaction{
		ID:             uuid.New(),
		AccountID:      ins.ReferrerID,
		Type:           domain.TransactionTypeReferralCommission,
		Amount:         ins.Amount,
		Status:         domain.TransactionStatusFailed,
		IdempotencyKey: commissionKey(trigger.ID, ins.Level),
		RequestHash:    commissionHash(trigger.ID, ins.Level, ins.Amount.String()),
		Metadata:       commissionMetadata(trigger, ins, cause.Error()),
		CreatedAt:      d.now().UTC(),
	}
	if err := d.transactions.Create(ctx, tx, failed); err != nil {
		if !repository.IsUniqueViolation(err) {
			logging.FromContext(ctx).Error("commission failure record: insert", "error", err)
		}
		return
	}
	if err := tx.Commit(); err != nil {
		logging.FromContext(ctx).Error("commission failure record: commit", "error", err)
	}
}

func commissionKey(triggerID uuid.UUID, level int) string {
	return fmt.Sprintf("ref:%s:l%d", triggerID, level)
}

func commissionHash(triggerID uuid.UUID, level int, amount string) string {
	h := sha256.New()
	fmt.Fprintf(h, "commission|%s|%d|%s", triggerID, level, amount)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func commissionMetadata(trigger *domain.Transaction, ins domain.CommissionInstruction, failure string) json.RawMessage {
	m := map[string]string{
		"trigger_id": trigger.ID.String(),
		"referee_id": trigger.AccountID.String(),
		"level":      fmt.Sprintf("%d", ins.Level),
		"rate":       ins.Rate.String(),
	}
	if failure != "" {
		m["failure_reason"] = failure
	}
	meta, _ := json.Marshal(m)
	return meta
}

func jitter(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Millisecond
	}
	d := base << (attempt - 1)
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
