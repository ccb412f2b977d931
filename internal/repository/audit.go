package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

// AuditRepository is the append-only sink for administrative overrides.
// Writes ride the same sql.Tx as the balance mutation they describe, so an
// adjustment can never commit without its trail.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, tx *sql.Tx, rec *domain.AuditRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, admin_id, account_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.AdminID, rec.AccountID, rec.Delta, rec.Reason, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
