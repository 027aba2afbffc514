package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
)

// Sweeper force-rolls-back open transactions that have gone stale, releasing
// their source locks. A client that opens a transaction and never finishes it
// would otherwise hold its source hostage indefinitely.
type Sweeper struct {
	transactions domain.TransactionRepository
	manager      *TransactionManager
	maxAge       time.Duration
	logger       *slog.Logger
}

// NewSweeper creates a new Sweeper. maxAge is the inactivity threshold beyond
// which an open transaction is considered abandoned.
func NewSweeper(transactions domain.TransactionRepository, manager *TransactionManager, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		transactions: transactions,
		manager:      manager,
		maxAge:       maxAge,
		logger:       logger,
	}
}

// Sweep rolls back every open transaction last touched before now-maxAge and
// returns the number rolled back. Individual failures are logged and skipped
// so one wedged transaction does not block the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	stale, err := s.transactions.ListOpenOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, tx := range stale {
		if err := s.manager.Rollback(ctx, tx.ID()); err != nil {
			s.logger.ErrorContext(ctx, "failed to roll back stale transaction",
				slog.String("transaction_id", tx.ID()),
				slog.String("source", tx.Source()),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.InfoContext(ctx, "rolled back stale transaction",
			slog.String("transaction_id", tx.ID()),
			slog.String("source", tx.Source()),
			slog.Int("pending_events", len(tx.Pending())))
		swept++
	}

	return swept, nil
}
