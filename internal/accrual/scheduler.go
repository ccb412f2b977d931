package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
)

type ledgerService interface {
	CreditInvestmentEarnings(ctx context.Context, req ledger.CreditEarningsRequest) (*domain.Transaction, error)
	MaturePosition(ctx context.Context, positionID uuid.UUID) (*domain.Transaction, error)
}

type positionRepo interface {
	ListActive(ctx context.Context) ([]domain.InvestmentPosition, error)
}

// Scheduler runs the daily earnings sweep: each active position earns
// principal x daily_rate once per calendar day, and positions past their
// maturity date are closed with the principal returned. Earnings keys are
// derived from position and date, so a duplicate run is a replay.
type Scheduler struct {
	ledger    ledgerService
	positions positionRepo
	schedule  string
	loc       *time.Location
	logger    *slog.Logger

	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler(svc ledgerService, positions positionRepo, schedule string, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ledger:    svc,
		positions: positions,
		schedule:  schedule,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithLocation(s.loc))
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background(), s.now()); err != nil {
			s.logger.Error("accrual sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("accrual.Start: schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("accrual scheduler started", "schedule", s.schedule)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("accrual scheduler stopped")
	}
}

// RunOnce sweeps all active positions as of the given instant. Per-position
// errors are logged and skipped; one bad position never stalls the rest.
func (s *Scheduler) RunOnce(ctx context.Context, asOf time.Time) error {
	positions, err := s.positions.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("RunOnce: %w", err)
	}

	var credited, matured, failed int
	for _, p := range positions {
		if !asOf.Before(p.MaturesAt) {
			if _, err := s.ledger.MaturePosition(ctx, p.ID); err != nil {
				failed++
				s.logger.Error("position maturity failed", "position_id", p.ID, "error", err)
				continue
			}
			matured++
			continue
		}

		earnings := p.Principal.Mul(p.DailyRate).Round(2)
		if earnings.Sign() <= 0 {
			continue
		}

		_, err := s.ledger.CreditInvestmentEarnings(ctx, ledger.CreditEarningsRequest{
			PositionID:     p.ID,
			Amount:         earnings,
			IdempotencyKey: earningsKey(p.ID, asOf.In(s.loc)),
		})
		if err != nil {
			failed++
			s.logger.Error("earnings credit failed", "position_id", p.ID, "error", err)
			continue
		}
		credited++
	}

	s.logger.Info("accrual sweep finished",
		"positions", len(positions),
		"credited", credited,
		"matured", matured,
		"failed", failed,
	)
	return nil
}

func earningsKey(positionID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("accr:%s:%s", positionID, day.Format("2006-01-02"))
}
