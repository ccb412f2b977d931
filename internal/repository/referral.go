package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
)

type ReferralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// EdgesForReferee returns the referral chain above an account, level 1 first.
func (r *ReferralRepository) EdgesForReferee(ctx context.Context, refereeID uuid.UUID) ([]domain.ReferralEdge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT referrer_id, referee_id, level, rate FROM referral_edges
		WHERE referee_id = $1 ORDER BY level`,
		refereeID,
	)
	if err != nil {
		return nil, fmt.Errorf("EdgesForReferee: %w", err)
	}
	defer rows.Close()

	var edges []domain.ReferralEdge
	for rows.Next() {
		var (
			e    domain.ReferralEdge
			rate decimal.NullDecimal
		)
		if err := rows.Scan(&e.ReferrerID, &e.RefereeID, &e.Level, &rate); err != nil {
			return nil, fmt.Errorf("EdgesForReferee: scan: %w", err)
		}
		// A NULL rate means the edge defers to the configured level rate.
		if rate.Valid {
			e.Rate = rate.Decimal
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("EdgesForReferee: rows: %w", err)
	}
	return edges, nil
}
