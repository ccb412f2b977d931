package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/logging"
)

type AdminAdjustRequest struct {
	AccountID      uuid.UUID
	Delta          decimal.Decimal
	Reason         string
	AdminID        uuid.UUID
	IdempotencyKey string
}

// AdminAdjustBalance applies a signed manual correction. It bypasses the
// amount-range policy but never the non-negative invariant, and the audit
// record commits in the same unit as the balance change: no adjustment
// without a trail.
func (s *Service) AdminAdjustBalance(ctx context.Context, req AdminAdjustRequest) (*domain.Transaction, error) {
	if req.Delta.Sign() == 0 {
		return nil, fmt.Errorf("AdminAdjustBalance: %w", domain.ErrInvalidAmount)
	}
	if req.Reason == "" {
		return nil, fmt.Errorf("AdminAdjustBalance: reason required: %w", domain.ErrInvalidRequest)
	}

	hash := requestHash("admin_adjust", req.AccountID.String(), req.Delta.String(), req.Reason, req.AdminID.String())

	existing, err := s.findExisting(ctx, req.AccountID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, fmt.Errorf("AdminAdjustBalance: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var created *domain.Transaction
	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}

		balance := acct.AvailableBalance.Add(req.Delta)
		if balance.Sign() < 0 {
			return fmt.Errorf("balance %s, delta %s: %w",
				acct.AvailableBalance, req.Delta, domain.ErrInsufficientFunds)
		}

		nowUTC := s.now().UTC()

		next := *acct
		next.AvailableBalance = balance
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{
			"reason":   req.Reason,
			"admin_id": req.AdminID.String(),
		})
		now := nowUTC
		created = &domain.Transaction{
			ID:             uuid.New(),
			AccountID:      req.AccountID,
			Type:           domain.TransactionTypeAdminAdjust,
			Amount:         req.Delta,
			Status:         domain.TransactionStatusCompleted,
			IdempotencyKey: req.IdempotencyKey,
			RequestHash:    hash,
			Metadata:       meta,
			CreatedAt:      nowUTC,
			SettledAt:      &now,
		}
		if err := s.transactions.Create(ctx, tx, created); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, &domain.AuditRecord{
			ID:        uuid.New(),
			AdminID:   req.AdminID,
			AccountID: req.AccountID,
			Delta:     req.Delta,
			Reason:    req.Reason,
			CreatedAt: nowUTC,
		})
	})
	if err != nil {
		if resolved, rerr := s.resolveDuplicate(ctx, err, req.AccountID, req.IdempotencyKey, hash); rerr != nil || resolved != nil {
			return resolved, rerr
		}
		return nil, fmt.Errorf("AdminAdjustBalance: %w", err)
	}

	logging.FromContext(ctx).Info("admin adjustment applied",
		"transaction_id", created.ID,
		"account_id", req.AccountID,
		"admin_id", req.AdminID,
		"delta", req.Delta,
	)
	return created, nil
}
