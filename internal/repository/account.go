package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

const accountColumns = `id, available_balance, locked_balance, total_invested,
	total_earned, today_withdrawn, withdrawn_day, version, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetByIDTx reads the account snapshot inside tx. A plain read, no FOR
// UPDATE: concurrency control is optimistic via the version column.
func (r *AccountRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIDTx: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIDTx: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (
			id, available_balance, locked_balance, total_invested,
			total_earned, today_withdrawn, withdrawn_day, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.AvailableBalance, account.LockedBalance, account.TotalInvested,
		account.TotalEarned, account.TodayWithdrawn, account.WithdrawnDay,
		account.Version, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ApplyBalances writes the mutated snapshot conditionally on no concurrent
// writer having touched the row: a.Version must already be the incremented
// value, and the guard matches the version the snapshot was read at. Zero
// rows affected means the CAS lost and the whole command must be retried.
func (r *AccountRepository) ApplyBalances(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET
			available_balance = $1, locked_balance = $2, total_invested = $3,
			total_earned = $4, today_withdrawn = $5, withdrawn_day = $6,
			version = $7, updated_at = $8
		WHERE id = $9 AND version = $10`,
		a.AvailableBalance, a.LockedBalance, a.TotalInvested,
		a.TotalEarned, a.TodayWithdrawn, a.WithdrawnDay,
		a.Version, a.UpdatedAt, a.ID, a.Version-1,
	)
	if err != nil {
		return fmt.Errorf("ApplyBalances: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ApplyBalances: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ApplyBalances: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.AvailableBalance, &a.LockedBalance, &a.TotalInvested,
		&a.TotalEarned, &a.TodayWithdrawn, &a.WithdrawnDay,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
