package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

const positionColumns = `id, account_id, plan_id, principal, daily_rate,
	status, opened_at, matures_at, closed_at`

type PositionRepository struct {
	db *sql.DB
}

func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.InvestmentPosition) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO investment_positions (
			id, account_id, plan_id, principal, daily_rate,
			status, opened_at, matures_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.AccountID, p.PlanID, p.Principal, p.DailyRate,
		p.Status, p.OpenedAt, p.MaturesAt, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM investment_positions WHERE id = $1`, id,
	)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PositionRepository) ListActive(ctx context.Context) ([]domain.InvestmentPosition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM investment_positions
		WHERE status = $1 ORDER BY opened_at`,
		domain.PositionStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer rows.Close()

	var positions []domain.InvestmentPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: scan: %w", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActive: rows: %w", err)
	}
	return positions, nil
}

// Close marks an active position matured or cancelled. The status guard
// means only the first close wins; a second close reports ErrPositionClosed
// and the caller decides whether that is a replay.
func (r *PositionRepository) Close(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PositionStatus, closedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE investment_positions SET status = $1, closed_at = $2
		WHERE id = $3 AND status = $4`,
		status, closedAt, id, domain.PositionStatusActive,
	)
	if err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Close: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Close: %w", domain.ErrPositionClosed)
	}
	return nil
}

func scanPosition(s scanner) (*domain.InvestmentPosition, error) {
	var p domain.InvestmentPosition
	err := s.Scan(
		&p.ID, &p.AccountID, &p.PlanID, &p.Principal, &p.DailyRate,
		&p.Status, &p.OpenedAt, &p.MaturesAt, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
