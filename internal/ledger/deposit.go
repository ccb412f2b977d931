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

type CreateDepositRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// CreateDeposit records a pending deposit. The balance is untouched until
// the gateway confirms; an unconfirmed deposit stays pending forever unless
// the caller cancels it.
func (s *Service) CreateDeposit(ctx context.Context, req CreateDepositRequest) (*domain.Transaction, error) {
	hash := requestHash("deposit", req.AccountID.String(), req.Amount.String())

	existing, err := s.findExisting(ctx, req.AccountID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if err := s.policy.ValidateDepositAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	t := &domain.Transaction{
		ID:             uuid.New(),
		AccountID:      req.AccountID,
		Type:           domain.TransactionTypeDeposit,
		Amount:         req.Amount,
		Status:         domain.TransactionStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		RequestHash:    hash,
		CreatedAt:      s.now().UTC(),
	}

	err = s.runOnce(ctx, func(tx *sql.Tx) error {
		return s.transactions.Create(ctx, tx, t)
	})
	if err != nil {
		if resolved, rerr := s.resolveDuplicate(ctx, err, req.AccountID, req.IdempotencyKey, hash); rerr != nil || resolved != nil {
			return resolved, rerr
		}
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	logging.FromContext(ctx).Info("deposit created",
		"transaction_id", t.ID,
		"account_id", req.AccountID,
		"amount", req.Amount,
	)
	return t, nil
}

// ConfirmDeposit settles a pending deposit: the status flip and the balance
// credit commit together. Confirming an already-completed deposit is a
// success no-op so duplicate gateway webhooks never double-credit.
func (s *Service) ConfirmDeposit(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}
	if t.Type != domain.TransactionTypeDeposit {
		return nil, fmt.Errorf("ConfirmDeposit: %s: %w", t.Type, domain.ErrInvalidTransition)
	}
	if t.Status == domain.TransactionStatusCompleted {
		return t, nil
	}
	if t.Status.Terminal() {
		return nil, fmt.Errorf("ConfirmDeposit: %s: %w", t.Status, domain.ErrTransactionTerminal)
	}

	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, t.AccountID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		next := *acct
		next.AvailableBalance = acct.AvailableBalance.Add(t.Amount)
		next.Version++
		next.UpdatedAt = now

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}
		// The pending guard runs in the same tx as the credit: if a
		// concurrent confirm won, zero rows match and the credit rolls back.
		return s.transactions.UpdateStatus(ctx, tx, t.ID,
			domain.TransactionStatusPending, domain.TransactionStatusCompleted, &now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			current, gerr := s.transactions.GetByID(ctx, t.ID)
			if gerr == nil && current.Status == domain.TransactionStatusCompleted {
				return current, nil
			}
			return nil, fmt.Errorf("ConfirmDeposit: %w", domain.ErrTransactionTerminal)
		}
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}

	confirmed, err := s.transactions.GetByID(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: reload: %w", err)
	}

	logging.FromContext(ctx).Info("deposit confirmed",
		"transaction_id", confirmed.ID,
		"account_id", confirmed.AccountID,
		"amount", confirmed.Amount,
	)

	s.distribute(ctx, confirmed)
	return confirmed, nil
}

// CancelTransaction moves a pending transaction to cancelled. Only pending
// transactions are cancellable; nothing was debited or credited for them, so
// no balance change happens. Callers use this to expire stale deposits.
func (s *Service) CancelTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("CancelTransaction: %w", err)
	}
	if t.Status == domain.TransactionStatusCancelled {
		return t, nil
	}
	if t.Status.Terminal() {
		return nil, fmt.Errorf("CancelTransaction: %s: %w", t.Status, domain.ErrTransactionTerminal)
	}
	if t.Status != domain.TransactionStatusPending {
		return nil, fmt.Errorf("CancelTransaction: %s: %w", t.Status, domain.ErrInvalidTransition)
	}

	err = s.runOnce(ctx, func(tx *sql.Tx) error {
		return s.transactions.UpdateStatus(ctx, tx, t.ID,
			domain.TransactionStatusPending, domain.TransactionStatusCancelled, nil)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			current, gerr := s.transactions.GetByID(ctx, t.ID)
			if gerr == nil && current.Status == domain.TransactionStatusCancelled {
				return current, nil
			}
			return nil, fmt.Errorf("CancelTransaction: %w", domain.ErrTransactionTerminal)
		}
		return nil, fmt.Errorf("CancelTransaction: %w", err)
	}

	cancelled, err := s.transactions.GetByID(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("CancelTransaction: reload: %w", err)
	}
	return cancelled, nil
}
