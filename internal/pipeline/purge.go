package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/repository"
)

// PurgeStep deletes a file's ledger entries once every document reached
// a terminal outcome. Entries with a retryable status are kept for the
// second wave; the ledger is a working set, not history.
type PurgeStep struct {
	ledger repository.LedgerRepository
	logger *zap.Logger
}

func NewPurgeStep(ledger repository.LedgerRepository, logger *zap.Logger) *PurgeStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeStep{ledger: ledger, logger: logger}
}

func (s *PurgeStep) Name() string { return "purge" }

func (s *PurgeStep) Run(ctx context.Context, st *State) error {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("file", st.File.Name))

	open := 0
	for _, entry := range st.Entries {
		if !terminal(entry) {
			open++
		}
	}
	if open > 0 {
		logger.Info("ledger kept for retry wave", zap.Int("openEntries", open))
		return nil
	}

	if err := s.ledger.DeleteByFile(ctx, st.Strategy.Name(), st.File.Name); err != nil {
		return fmt.Errorf("purge ledger for %s: %w", st.File.Name, err)
	}
	logger.Info("ledger purged", zap.Int("entries", len(st.Entries)))
	return nil
}
