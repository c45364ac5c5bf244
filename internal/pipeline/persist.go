package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/repository"
)

// PersistStep writes the aggregated documents to the ledger, one entry
// per document key, submitted=false. This is the resumption boundary:
// when entries for the file already exist they are loaded instead, so a
// restarted or second-wave run continues from the recorded outcomes.
type PersistStep struct {
	ledger repository.LedgerRepository
	logger *zap.Logger
}

func NewPersistStep(ledger repository.LedgerRepository, logger *zap.Logger) *PersistStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistStep{ledger: ledger, logger: logger}
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Run(ctx context.Context, st *State) error {
	module := st.Strategy.Name()
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("file", st.File.Name))

	existing, err := s.ledger.ByFile(ctx, module, st.File.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load ledger for %s: %w", st.File.Name, err)
	}
	if len(existing) > 0 {
		st.Entries = existing
		logger.Info("resuming from ledger", zap.Int("entries", len(existing)))
		return nil
	}

	if st.Wave == domain.WaveSecond {
		return fmt.Errorf("%w: no ledger entries for %s, nothing to retry", domain.ErrNotFound, st.File.Name)
	}
	if st.Batch == nil {
		return fmt.Errorf("%w: no aggregated batch for %s", domain.ErrStructural, st.File.Name)
	}

	var runID uint
	if st.Run != nil {
		runID = st.Run.ID
	}

	docs := st.Batch.All()
	entries := make([]*domain.LedgerEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, &domain.LedgerEntry{
			RunID:     runID,
			Module:    module,
			FileName:  st.File.Name,
			Key:       doc.Key,
			Synthetic: doc.Synthetic,
			Submitted: false,
			Status:    doc.Status(),
			Payload:   doc.Payload,
			Records:   doc.Records,
		})
	}

	if err := s.ledger.CreateBatch(ctx, entries); err != nil {
		return fmt.Errorf("persist %d documents for %s: %w", len(entries), st.File.Name, err)
	}

	st.Entries = entries
	logger.Info("documents persisted", zap.Int("entries", len(entries)))
	return nil
}
