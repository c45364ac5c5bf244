// Package aggregate folds flat input records into hierarchical documents
// grouped by the module's document key. Mapping failures quarantine the
// owning document with readable status text instead of aborting the
// batch; partial success is the expected steady state.
package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/lookup"
)

type Aggregator struct {
	strategy doctype.Strategy
	mapper   *doctype.Mapper
	logger   *zap.Logger

	state      *BatchState
	currentKey string
}

func NewAggregator(strategy doctype.Strategy, tables *lookup.Tables, directory erp.Directory, logger *zap.Logger) *Aggregator {
	a := &Aggregator{strategy: strategy, logger: logger}
	a.mapper = doctype.NewMapper(tables, directory, a, logger)
	return a
}

// RegisterError accumulates one error phrase on the record and moves the
// owning document key out of the successful set. Distinct phrases append,
// repeats are dropped.
func (a *Aggregator) RegisterError(rec *domain.Record, txt string) {
	rec.AddStatus(txt)
	if a.state != nil && a.currentKey != "" {
		a.state.MarkErrored(a.currentKey)
	}
}

// Process folds the records into documents, in file order. Every input
// line ends up in exactly one document; lines with an empty key get a
// synthetic per-line key and an unknown-key error so they surface in the
// errors export instead of disappearing.
func (a *Aggregator) Process(ctx context.Context, file string, records []*domain.Record) *BatchState {
	a.state = NewBatchState(a.strategy.Name(), file)
	defer func() { a.state, a.currentKey = nil, "" }()

	keyField := a.strategy.KeyField()
	for _, rec := range records {
		a.state.lines++

		key := rec.Get(keyField)
		synthetic := key == ""
		if synthetic {
			key = domain.SyntheticKey(rec.Line)
		}
		a.currentKey = key

		if doc, ok := a.state.Document(key); ok {
			line := a.strategy.BuildLine(ctx, a.mapper, rec)
			a.strategy.Merge(doc.Payload, line)
			doc.Records = append(doc.Records, rec)
			continue
		}

		doc := &domain.Document{
			Key:       key,
			Synthetic: synthetic,
			Payload:   a.strategy.BuildHeader(ctx, a.mapper, rec, key),
			Records:   []*domain.Record{rec},
		}
		a.state.add(doc)
		if synthetic {
			a.RegisterError(rec, fmt.Sprintf("%s unknown key: empty %s on line %d", domain.LocalTag, keyField, rec.Line))
		}
	}

	state := a.state
	a.logger.Info("batch aggregated",
		zap.String("module", state.Module),
		zap.String("file", state.File),
		zap.Int("lines", state.Lines()),
		zap.Int("documents", len(state.All())),
		zap.Int("errored", len(state.Failed())),
	)
	return state
}
