package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/aggregate"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/lookup"
)

// AggregateStep folds the parsed records into documents using the
// module's strategy.
type AggregateStep struct {
	tables    *lookup.Tables
	directory erp.Directory
	logger    *zap.Logger
}

func NewAggregateStep(tables *lookup.Tables, directory erp.Directory, logger *zap.Logger) *AggregateStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateStep{tables: tables, directory: directory, logger: logger}
}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Run(ctx context.Context, st *State) error {
	if st.Wave == domain.WaveSecond {
		return nil
	}

	aggregator := aggregate.NewAggregator(st.Strategy, s.tables, s.directory, s.logger)
	st.Batch = aggregator.Process(ctx, st.File.Name, st.Records)
	return nil
}
