package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rupeevault/wallet-ledger/internal/domain"
	"github.com/rupeevault/wallet-ledger/internal/metrics"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

// runOnce executes fn inside a single database transaction. Both the balance
// CAS and the transaction-record write happen in fn, so either both persist
// or neither does.
func (s *Service) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runOnce: commit: %w", err)
	}
	return nil
}

// runWithRetry re-runs the whole command on version conflicts: fn re-reads
// the account and re-evaluates policy on every attempt. Attempts are bounded
// and jittered; exhaustion surfaces ErrConflict instead of blocking.
func (s *Service) runWithRetry(ctx context.Context, fn func(tx *sql.Tx) error) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitteredBackoff(s.backoffBase, attempt)):
			}
		}

		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	metrics.CASRetriesExhausted.Inc()
	return fmt.Errorf("runWithRetry: %d attempts: %w", s.maxAttempts, domain.ErrConflict)
}

func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Millisecond
	}
	d := base << (attempt - 1)
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}

// requestHash fingerprints a command so a reused idempotency key can be told
// apart from a genuine retry of the same request.
func requestHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// resolveDuplicate handles losing an idempotency-key insert race: when err
// is a unique violation, the winner's transaction is fetched and returned
// (hash-checked). A (nil, nil) result means err was something else.
func (s *Service) resolveDuplicate(ctx context.Context, err error, accountID uuid.UUID, key, hash string) (*domain.Transaction, error) {
	if !repository.IsUniqueViolation(err) {
		return nil, nil
	}
	existing, ferr := s.findExisting(ctx, accountID, key, hash)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, fmt.Errorf("resolveDuplicate: %w", err)
	}
	return existing, nil
}

// findExisting resolves an idempotency key: nil means unused, a transaction
// means replay (callers return it as success), ErrAlreadyProcessed means the
// key was reused with a different request.
func (s *Service) findExisting(ctx context.Context, accountID uuid.UUID, key, hash string) (*domain.Transaction, error) {
	existing, err := s.transactions.GetByIdempotencyKey(ctx, accountID, key)
	if err != nil {
		return nil, fmt.Errorf("findExisting: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.RequestHash != hash {
		return nil, fmt.Errorf("findExisting: key %q: %w", key, domain.ErrAlreadyProcessed)
	}
	return existing, nil
}
