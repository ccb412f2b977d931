package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/logging"
)

type DebitInvestmentRequest struct {
	AccountID      uuid.UUID
	PlanID         string
	Amount         decimal.Decimal
	DailyRate      decimal.Decimal
	TermDays       int
	IdempotencyKey string
}

// DebitInvestment debits the principal and opens the investment position as
// one atomic unit: an insufficient balance fails both together.
func (s *Service) DebitInvestment(ctx context.Context, req DebitInvestmentRequest) (*domain.Transaction, *domain.InvestmentPosition, error) {
	if req.Amount.Sign() <= 0 {
		return nil, nil, fmt.Errorf("DebitInvestment: %w", domain.ErrInvalidAmount)
	}
	if req.PlanID == "" || req.DailyRate.Sign() <= 0 || req.TermDays <= 0 {
		return nil, nil, fmt.Errorf("DebitInvestment: plan parameters: %w", domain.ErrInvalidRequest)
	}

	hash := requestHash("investment", req.AccountID.String(), req.PlanID, req.Amount.String())

	existing, err := s.findExisting(ctx, req.AccountID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("DebitInvestment: %w", err)
	}
	if existing != nil {
		pos, perr := s.positionForTransaction(ctx, existing)
		if perr != nil {
			return nil, nil, fmt.Errorf("DebitInvestment: %w", perr)
		}
		return existing, pos, nil
	}

	var (
		created  *domain.Transaction
		position *domain.InvestmentPosition
	)
	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		if acct.AvailableBalance.LessThan(req.Amount) {
			return fmt.Errorf("balance %s, requested %s: %w",
				acct.AvailableBalance, req.Amount, domain.ErrInsufficientFunds)
		}

		nowUTC := s.now().UTC()

		next := *acct
		next.AvailableBalance = acct.AvailableBalance.Sub(req.Amount)
		next.TotalInvested = acct.TotalInvested.Add(req.Amount)
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}

		position = &domain.InvestmentPosition{
			ID:        uuid.New(),
			AccountID: req.AccountID,
			PlanID:    req.PlanID,
			Principal: req.Amount,
			DailyRate: req.DailyRate,
			Status:    domain.PositionStatusActive,
			OpenedAt:  nowUTC,
			MaturesAt: nowUTC.AddDate(0, 0, req.TermDays),
		}

		meta, _ := json.Marshal(map[string]string{
			"plan_id":     req.PlanID,
			"position_id": position.ID.String(),
		})
		now := nowUTC
		created = &domain.Transaction{
			ID:             uuid.New(),
			AccountID:      req.AccountID,
			Type:           domain.TransactionTypeInvestmentDebit,
			Amount:         req.Amount.Neg(),
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
		return s.positions.Create(ctx, tx, position)
	})
	if err != nil {
		resolved, rerr := s.resolveDuplicate(ctx, err, req.AccountID, req.IdempotencyKey, hash)
		if rerr != nil {
			return nil, nil, rerr
		}
		if resolved != nil {
			pos, perr := s.positionForTransaction(ctx, resolved)
			if perr != nil {
				return nil, nil, fmt.Errorf("DebitInvestment: %w", perr)
			}
			return resolved, pos, nil
		}
		return nil, nil, fmt.Errorf("DebitInvestment: %w", err)
	}

	logging.FromContext(ctx).Info("investment opened",
		"transaction_id", created.ID,
		"position_id", position.ID,
		"account_id", req.AccountID,
		"plan_id", req.PlanID,
		"principal", req.Amount,
	)

	s.distribute(ctx, created)
	return created, position, nil
}

type CreditEarningsRequest struct {
	PositionID     uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// CreditInvestmentEarnings credits daily earnings against an active
// position. The position stays active until maturity.
func (s *Service) CreditInvestmentEarnings(ctx context.Context, req CreditEarningsRequest) (*domain.Transaction, error) {
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("CreditInvestmentEarnings: %w", domain.ErrInvalidAmount)
	}

	pos, err := s.positions.GetByID(ctx, req.PositionID)
	if err != nil {
		return nil, fmt.Errorf("CreditInvestmentEarnings: %w", err)
	}
	if pos.Status != domain.PositionStatusActive {
		return nil, fmt.Errorf("CreditInvestmentEarnings: %s: %w", pos.Status, domain.ErrPositionClosed)
	}

	hash := requestHash("earnings", req.PositionID.String(), req.Amount.String())

	existing, err := s.findExisting(ctx, pos.AccountID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, fmt.Errorf("CreditInvestmentEarnings: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var created *domain.Transaction
	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, pos.AccountID)
		if err != nil {
			return err
		}

		nowUTC := s.now().UTC()

		next := *acct
		next.AvailableBalance = acct.AvailableBalance.Add(req.Amount)
		next.TotalEarned = acct.TotalEarned.Add(req.Amount)
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{"position_id": pos.ID.String()})
		now := nowUTC
		created = &domain.Transaction{
			ID:             uuid.New(),
			AccountID:      pos.AccountID,
			Type:           domain.TransactionTypeInvestmentCredit,
			Amount:         req.Amount,
			Status:         domain.TransactionStatusCompleted,
			IdempotencyKey: req.IdempotencyKey,
			RequestHash:    hash,
			Metadata:       meta,
			CreatedAt:      nowUTC,
			SettledAt:      &now,
		}
		return s.transactions.Create(ctx, tx, created)
	})
	if err != nil {
		if resolved, rerr := s.resolveDuplicate(ctx, err, pos.AccountID, req.IdempotencyKey, hash); rerr != nil || resolved != nil {
			return resolved, rerr
		}
		return nil, fmt.Errorf("CreditInvestmentEarnings: %w", err)
	}

	return created, nil
}

// MaturePosition closes a position past its maturity date and returns the
// principal to the available balance via a settlement transaction. Safe to
// call repeatedly: the first close wins, later calls replay its result.
func (s *Service) MaturePosition(ctx context.Context, positionID uuid.UUID) (*domain.Transaction, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("MaturePosition: %w", err)
	}

	key := "mat:" + pos.ID.String()
	hash := requestHash("maturity", pos.ID.String())

	existing, err := s.findExisting(ctx, pos.AccountID, key, hash)
	if err != nil {
		return nil, fmt.Errorf("MaturePosition: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	if pos.Status != domain.PositionStatusActive {
		return nil, fmt.Errorf("MaturePosition: %s: %w", pos.Status, domain.ErrPositionClosed)
	}

	var created *domain.Transaction
	err = s.runWithRetry(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.GetByIDTx(ctx, tx, pos.AccountID)
		if err != nil {
			return err
		}

		nowUTC := s.now().UTC()

		next := *acct
		next.AvailableBalance = acct.AvailableBalance.Add(pos.Principal)
		next.TotalInvested = acct.TotalInvested.Sub(pos.Principal)
		if next.TotalInvested.Sign() < 0 {
			next.TotalInvested = decimal.Zero
		}
		next.Version++
		next.UpdatedAt = nowUTC

		if err := s.accounts.ApplyBalances(ctx, tx, &next); err != nil {
			return err
		}
		if err := s.positions.Close(ctx, tx, pos.ID, domain.PositionStatusMatured, nowUTC); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{
			"position_id": pos.ID.String(),
			"kind":        "maturity",
		})
		now := nowUTC
		created = &domain.Transaction{
			ID:             uuid.New(),
			AccountID:      pos.AccountID,
			Type:           domain.TransactionTypeRefund,
			Amount:         pos.Principal,
			Status:         domain.TransactionStatusCompleted,
			IdempotencyKey: key,
			RequestHash:    hash,
			Metadata:       meta,
			CreatedAt:      nowUTC,
			SettledAt:      &now,
		}
		return s.transactions.Create(ctx, tx, created)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPositionClosed) {
			if replay, ferr := s.findExisting(ctx, pos.AccountID, key, hash); ferr == nil && replay != nil {
				return replay, nil
			}
			return nil, fmt.Errorf("MaturePosition: %w", domain.ErrPositionClosed)
		}
		if resolved, rerr := s.resolveDuplicate(ctx, err, pos.AccountID, key, hash); rerr != nil || resolved != nil {
			return resolved, rerr
		}
		return nil, fmt.Errorf("MaturePosition: %w", err)
	}

	logging.FromContext(ctx).Info("position matured",
		"position_id", pos.ID,
		"account_id", pos.AccountID,
		"principal", pos.Principal,
	)
	return created, nil
}

func (s *Service) positionForTransaction(ctx context.Context, t *domain.Transaction) (*domain.InvestmentPosition, error) {
	var meta struct {
		PositionID string `json:"position_id"`
	}
	if err := json.Unmarshal(t.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("positionForTransaction: %w", err)
	}
	id, err := uuid.Parse(meta.PositionID)
	if err != nil {
		return nil, fmt.Errorf("positionForTransaction: %w", err)
	}
	return s.positions.GetByID(ctx, id)
}
