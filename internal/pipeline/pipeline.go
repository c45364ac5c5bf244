// Package pipeline is the two-phase sync orchestrator: an ordered chain
// of steps taking one input file from validation through aggregation,
// ledger persistence, upstream submission, export, and purge. Steps are
// replayable: a restart resumes from the ledger instead of re-parsing
// the file, and already-submitted documents are never sent again.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/aggregate"
	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/filestore"
	"github.com/farmalink/erpbridge/internal/notify"
	"github.com/farmalink/erpbridge/internal/observability"
)

// Step is one transition of the per-file state machine.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// State is the mutable per-file context threaded through the steps.
type State struct {
	Run      *domain.Run
	Strategy doctype.Strategy
	Wave     domain.Wave

	File    filestore.File
	Content []byte

	Records []*domain.Record
	Batch   *aggregate.BatchState
	Entries []*domain.LedgerEntry
}

// Orchestrator drives the steps in order and owns the file-level failure
// boundary: a step error marks the run, dispatches a diagnostic
// notification naming the step and its position, and is returned to the
// caller unchanged in meaning.
type Orchestrator struct {
	steps    []Step
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewOrchestrator(notifier notify.Notifier, logger *zap.Logger, steps ...Step) *Orchestrator {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{steps: steps, notifier: notifier, logger: logger}
}

// Execute runs every step against the state. The summary notification
// after a clean pass reports the per-class document counts so operators
// see rejections without opening the exports.
func (o *Orchestrator) Execute(ctx context.Context, st *State) error {
	ctx = observability.WithModule(ctx, st.Strategy.Name())
	logger := observability.WithContextLogger(o.logger, ctx).With(zap.String("file", st.File.Name))

	for i, step := range o.steps {
		if err := step.Run(ctx, st); err != nil {
			logger.Error("pipeline step failed",
				zap.String("step", step.Name()),
				zap.Int("position", i+1),
				zap.Error(err),
			)
			subject := fmt.Sprintf("synchronization failed at step %s (%d of %d)", step.Name(), i+1, len(o.steps))
			if nerr := o.notifier.Notify(ctx, subject, map[string]any{
				"module": st.Strategy.Name(),
				"file":   st.File.Name,
				"step":   step.Name(),
				"error":  err.Error(),
			}); nerr != nil {
				logger.Warn("failure notification not delivered", zap.Error(nerr))
			}
			return fmt.Errorf("step %s: %w", step.Name(), err)
		}
	}

	counts := countByClass(st.Entries)
	failures := failurePhrases(st.Entries)
	logger.Info("file processed",
		zap.Int("documents", len(st.Entries)),
		zap.Any("byClass", counts),
		zap.Strings("failures", failures),
	)
	if err := o.notifier.Notify(ctx, fmt.Sprintf("file %s processed", st.File.Name), map[string]any{
		"module":    st.Strategy.Name(),
		"file":      st.File.Name,
		"documents": len(st.Entries),
		"byClass":   counts,
		"failures":  failures,
	}); err != nil {
		logger.Warn("summary notification not delivered", zap.Error(err))
	}
	return nil
}

func countByClass(entries []*domain.LedgerEntry) map[string]int {
	counts := make(map[string]int, 4)
	for _, entry := range entries {
		counts[entry.Class().String()]++
	}
	return counts
}

// failurePhrases lists the distinct rejection phrases among the file's
// unaccepted documents, collapsed to their canonical short form so the
// summary stays readable when the ERP repeats a verbose rejection.
func failurePhrases(entries []*domain.LedgerEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range entries {
		if entry.Class() == domain.ClassAccepted || entry.Status == "" {
			continue
		}
		phrase := erp.ShortMessage(entry.Status)
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

// terminal reports whether an entry needs no further submission attempt:
// it was accepted, or it carries a local error that bars submission.
func terminal(entry *domain.LedgerEntry) bool {
	switch entry.Class() {
	case domain.ClassAccepted, domain.ClassLocal:
		return true
	}
	return false
}
