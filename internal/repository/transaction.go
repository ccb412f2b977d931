package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

const transactionColumns = `id, account_id, type, amount, status, idempotency_key,
	request_hash, tax_withheld, fee, net_amount, metadata, created_at, settled_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, account_id, type, amount, status, idempotency_key,
			request_hash, tax_withheld, fee, net_amount, metadata, created_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.Status, t.IdempotencyKey,
		t.RequestHash, nullDecimal(t.TaxWithheld), nullDecimal(t.Fee), nullDecimal(t.NetAmount),
		t.Metadata, t.CreatedAt, t.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetByIdempotencyKey returns (nil, nil) when the key has never been used on
// this account.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 AND idempotency_key = $2`,
		accountID, key,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return t, nil
}

// UpdateStatus transitions a transaction from one status to another inside
// tx. The from-guard enforces one-way transitions under races: zero rows
// affected means the transaction was not in the expected state, and the
// caller must re-read to decide between a no-op and an error.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, settledAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, settled_at = $2 WHERE id = $3 AND status = $4`,
		to, settledAt, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", from, to, domain.ErrInvalidTransition)
	}
	return nil
}

type ListFilter struct {
	Type   domain.TransactionType
	Status domain.TransactionStatus
	Limit  int
	Offset int
}

func (r *TransactionRepository) List(ctx context.Context, accountID uuid.UUID, filter ListFilter) ([]domain.Transaction, int, error) {
	where := []string{"account_id = $1"}
	args := []any{accountID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+cond, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+cond+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("List: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("List: rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t             domain.Transaction
		tax, fee, net decimal.NullDecimal
	)
	err := s.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Status, &t.IdempotencyKey,
		&t.RequestHash, &tax, &fee, &net, &t.Metadata, &t.CreatedAt, &t.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	t.TaxWithheld = fromNullDecimal(tax)
	t.Fee = fromNullDecimal(fee)
	t.NetAmount = fromNullDecimal(net)
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
