package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/logging"
)

type CreateWithdrawalRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// CreateWithdrawal debits the available balance immediately and parks the
// funds in the locked balance while the payout is processing. Withholding is
// computed up front and recorded on the transaction. Window, range and daily
// limit are re-evaluated on every CAS attempt.
func (s *Service) CreateWithdrawal(ctx context.Context, req CreateWithdrawalRequest) (*domain.Transaction, error) {
	hash := requestHash("withdrawal", req.AccountID.String(), req.Amount.String())

	existing, err := s.findExisting(ctx, req.AccountID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var created *domain.Transaction
	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		now := s.now()
		if !s.policy.WithinWithdrawalWindow(now) {
			return fmt.Errorf("withdrawals open Mon-Fri business hours: %w", domain.ErrOutsideWindow)
		}

		acct, err := s.accounts.GetByIDTx(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}

		today := s.policy.Today(now)
		if err := s.policy.ValidateWithdrawalAmount(req.Amount, acct.WithdrawnToday(today)); err != nil {
			return err
		}
		if acct.AvailableBalance.LessThan(req.Amount) {
			return fmt.Errorf("balance %s, requested %s: %w",
				acct.AvailableBalance, req.Amount, domain.ErrInsufficientFunds)
		}

		wh := s.policy.ComputeWithholding(req.Amount)
		nowUTC := now.UTC()

		next := *acct
		next.AvailableBalance = acct.AvailableBalance.Sub(req.Amount)
		next.LockedBalance = acct.LockedBalance.Add(req.Amount)
		next.TodayWithdrawn = acct.WithdrawnToday(today).Add(req.Amount)
		next.WithdrawnDay = today
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}

		created = &domain.Transaction{
			ID:             uuid.New(),
			AccountID:      req.AccountID,
			Type:           domain.TransactionTypeWithdrawal,
			Amount:         req.Amount.Neg(),
			Status:         domain.TransactionStatusProcessing,
			IdempotencyKey: req.IdempotencyKey,
			RequestHash:    hash,
			TaxWithheld:    &wh.Tax,
			Fee:            &wh.Fee,
			NetAmount:      &wh.Net,
			CreatedAt:      nowUTC,
		}
		return s.transactions.Create(ctx, tx, created)
	})
	if err != nil {
		if resolved, rerr := s.resolveDuplicate(ctx, err, req.AccountID, req.IdempotencyKey, hash); rerr != nil || resolved != nil {
			return resolved, rerr
		}
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal created",
		"transaction_id", created.ID,
		"account_id", req.AccountID,
		"amount", req.Amount,
		"net_amount", created.NetAmount,
	)
	return created, nil
}

// SettleWithdrawal finishes a processing withdrawal. Completed drains the
// locked funds out of the system; failed unlocks them back to available and
// rolls the daily accumulator back. Settling an already-settled withdrawal
// with the same outcome is a no-op.
func (s *Service) SettleWithdrawal(ctx context.Context, transactionID uuid.UUID, outcome domain.WithdrawalOutcome) (*domain.Transaction, error) {
	if outcome != domain.WithdrawalOutcomeCompleted && outcome != domain.WithdrawalOutcomeFailed {
		return nil, fmt.Errorf("SettleWithdrawal: outcome %q: %w", outcome, domain.ErrInvalidRequest)
	}

	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("SettleWithdrawal: %w", err)
	}
	if t.Type != domain.TransactionTypeWithdrawal {
		return nil, fmt.Errorf("SettleWithdrawal: %s: %w", t.Type, domain.ErrInvalidTransition)
	}
	if t.Status.Terminal() {
		if string(t.Status) == string(outcome) {
			return t, nil
		}
		return nil, fmt.Errorf("SettleWithdrawal: %s: %w", t.Status, domain.ErrTransactionTerminal)
	}
	if t.Status != domain.TransactionStatusProcessing {
		return nil, fmt.Errorf("SettleWithdrawal: %s: %w", t.Status, domain.ErrInvalidTransition)
	}

	amount := t.Amount.Neg()
	target := domain.TransactionStatusCompleted
	if outcome == domain.WithdrawalOutcomeFailed {
		target = domain.TransactionStatusFailed
	}

	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, t.AccountID)
		if err != nil {
			return err
		}

		now := s.now()
		nowUTC := now.UTC()

		next := *acct
		next.LockedBalance = acct.LockedBalance.Sub(amount)
		if outcome == domain.WithdrawalOutcomeFailed {
			next.AvailableBalance = acct.AvailableBalance.Add(amount)

			today := s.policy.Today(now)
			rolled := acct.WithdrawnToday(today).Sub(amount)
			if rolled.Sign() < 0 {
				rolled = decimal.Zero
			}
			next.TodayWithdrawn = rolled
			next.WithdrawnDay = today
		}
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}
		return s.transactions.UpdateStatus(ctx, tx, t.ID,
			domain.TransactionStatusProcessing, target, &nowUTC)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			current, gerr := s.transactions.GetByID(ctx, t.ID)
			if gerr == nil && current.Status == target {
				return current, nil
			}
			return nil, fmt.Errorf("SettleWithdrawal: %w", domain.ErrTransactionTerminal)
		}
		return nil, fmt.Errorf("SettleWithdrawal: %w", err)
	}

	settled, err := s.transactions.GetByID(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("SettleWithdrawal: reload: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal settled",
		"transaction_id", settled.ID,
		"account_id", settled.AccountID,
		"outcome", outcome,
	)
	return settled, nil
}
