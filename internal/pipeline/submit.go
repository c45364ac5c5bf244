package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/reconcile"
	"github.com/farmalink/erpbridge/internal/repository"
)

// DefaultConcurrency bounds the submission worker pool.
const DefaultConcurrency = 12

// SubmitStep sends the file's unresolved documents upstream through a
// bounded worker pool. First wave covers the not-yet-submitted entries;
// second wave covers only previously-submitted entries whose status
// classifies as retryable, reconciling lot allocations against the ERP's
// authoritative movements before resubmitting.
type SubmitStep struct {
	submitter   erp.Submitter
	directory   erp.Directory
	ledger      repository.LedgerRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	concurrency int
}

func NewSubmitStep(submitter erp.Submitter, directory erp.Directory, ledger repository.LedgerRepository, metrics *observability.Metrics, logger *zap.Logger, concurrency int) *SubmitStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &SubmitStep{
		submitter:   submitter,
		directory:   directory,
		ledger:      ledger,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

func (s *SubmitStep) Name() string { return "submit" }

func (s *SubmitStep) Run(ctx context.Context, st *State) error {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("file", st.File.Name))

	candidates, err := s.candidates(ctx, st)
	if err != nil {
		return fmt.Errorf("load submission candidates: %w", err)
	}
	if len(candidates) == 0 {
		logger.Info("nothing to submit", zap.String("wave", string(st.Wave)))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, entry := range candidates {
		entry := entry
		g.Go(func() error {
			return s.submitOne(gctx, st, entry)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("submission wave finished",
		zap.String("wave", string(st.Wave)),
		zap.Int("submitted", len(candidates)),
	)
	return nil
}

// candidates loads the entries this wave may touch from the ledger: the
// not-yet-submitted entries on the first wave, the retryable-class ones
// on the second. Entries with a local error on any contributing line are
// never submitted; accepted entries are never resubmitted.
func (s *SubmitStep) candidates(ctx context.Context, st *State) ([]*domain.LedgerEntry, error) {
	module := st.Strategy.Name()
	if st.Wave == domain.WaveSecond {
		return s.ledger.Retryable(ctx, module, st.File.Name)
	}

	pending, err := s.ledger.Pending(ctx, module, st.File.Name)
	if err != nil {
		return nil, err
	}
	out := pending[:0]
	for _, entry := range pending {
		if entry.Class() != domain.ClassLocal {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *SubmitStep) submitOne(ctx context.Context, st *State, entry *domain.LedgerEntry) error {
	module := entry.Module
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("file", entry.FileName),
		zap.String("key", entry.Key),
	)

	// Sentinel warehouse: ledgered as resolved, never sent upstream.
	if doctype.NotApplicable(entry.Payload) {
		logger.Info("document not applicable, skipping upstream call")
		return s.finish(ctx, entry, domain.StatusNotApplicable)
	}

	if st.Wave == domain.WaveSecond {
		s.metrics.IncSecondWave(module)
		if err := s.reconcileLots(ctx, entry, logger); err != nil {
			return err
		}
	}

	s.metrics.IncWorkerInFlight(module)
	defer s.metrics.DecWorkerInFlight(module)

	start := time.Now()
	var docEntry int
	var err error
	if up, ok := st.Strategy.(doctype.Updater); ok && up.UpdatesInPlace() {
		// In-place document types modify an existing ERP object; the
		// object's own entry becomes the accepted reference.
		err = s.submitter.Patch(ctx, st.Strategy.Endpoint(entry.Payload), entry.Payload)
		docEntry = entry.Payload.AbsEntry
	} else {
		docEntry, err = s.submitter.Submit(ctx, st.Strategy.Endpoint(entry.Payload), entry.Payload)
	}
	s.metrics.ObserveSubmissionDuration(module, time.Since(start))

	if err != nil {
		var submitErr *erp.SubmitError
		if errors.As(err, &submitErr) {
			s.metrics.IncDocumentFailed(module, submitErr.Class.String())
			logger.Warn("document rejected",
				zap.String("class", submitErr.Class.String()),
				zap.String("message", submitErr.Message),
			)
			return s.finish(ctx, entry, submitErr.StatusText())
		}
		// Anything unclassified (failed login, cancelled context) is
		// structural and aborts the file.
		return fmt.Errorf("submit document %s: %w", entry.Key, err)
	}

	s.metrics.IncDocumentSubmitted(module)
	logger.Info("document accepted", zap.Int("docEntry", docEntry))
	return s.finish(ctx, entry, fmt.Sprintf("%s %d", domain.AcceptedPrefix, docEntry))
}

// finish records one submission outcome: the ledger row is updated and
// the status is mirrored onto every contributing source line so exports
// built from the ledger stay self-consistent.
func (s *SubmitStep) finish(ctx context.Context, entry *domain.LedgerEntry, status string) error {
	entry.Submitted = true
	entry.Status = status
	for _, rec := range entry.Records {
		rec.SetStatus(status)
	}
	if err := s.ledger.UpdateSubmission(ctx, entry); err != nil {
		return fmt.Errorf("record outcome for %s: %w", entry.Key, err)
	}
	return nil
}

// reconcileLots rebuilds a document's line items from the ERP's
// authoritative movements when the stored rejection indicates the ERP
// allocated different lots than the ones declared locally.
func (s *SubmitStep) reconcileLots(ctx context.Context, entry *domain.LedgerEntry, logger *zap.Logger) error {
	if !erp.LotMismatch(entry.Status) {
		return nil
	}

	movements, err := s.directory.Movements(ctx, entry.Key)
	if err != nil {
		return fmt.Errorf("fetch movements for %s: %w", entry.Key, err)
	}
	if len(movements) == 0 {
		logger.Warn("no authoritative movements, resubmitting as-is")
		return nil
	}

	local := entry.Payload.Lines()
	var rebuilt []domain.LineItem
	if reconcile.Consistent(local, movements) {
		rebuilt, err = reconcile.SplitAllocations(local, movements)
		if err != nil {
			logger.Warn("allocation split failed, falling back to full rebuild", zap.Error(err))
			rebuilt = reconcile.Rebuild(local, movements)
		}
	} else {
		rebuilt = reconcile.Rebuild(local, movements)
	}

	if len(entry.Payload.TransferLines) > 0 {
		entry.Payload.TransferLines = rebuilt
	} else {
		entry.Payload.DocumentLines = rebuilt
	}
	logger.Info("line items reconciled against authoritative movements",
		zap.Int("movements", len(movements)),
		zap.Int("lines", len(rebuilt)),
	)
	return nil
}
