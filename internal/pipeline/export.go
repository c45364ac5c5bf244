package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/filestore"
	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/repository"
)

// ExportStep produces the report artifacts from the ledger's current
// contents, never from in-memory state, so a report after a retry wave
// reflects the latest outcome of every document. After a first-wave
// export the source file is moved out of the inbox; later waves work
// from the ledger alone.
type ExportStep struct {
	store           filestore.Store
	ledger          repository.LedgerRepository
	exportFolder    string
	processedFolder string
	dumpPayloads    bool
	logger          *zap.Logger
}

func NewExportStep(store filestore.Store, ledger repository.LedgerRepository, exportFolder, processedFolder string, dumpPayloads bool, logger *zap.Logger) *ExportStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportStep{
		store:           store,
		ledger:          ledger,
		exportFolder:    exportFolder,
		processedFolder: processedFolder,
		dumpPayloads:    dumpPayloads,
		logger:          logger,
	}
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Run(ctx context.Context, st *State) error {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("file", st.File.Name))

	entries, err := s.ledger.ByFile(ctx, st.Strategy.Name(), st.File.Name)
	if err != nil {
		return fmt.Errorf("load ledger for export: %w", err)
	}
	st.Entries = entries

	base := strings.TrimSuffix(st.File.Name, path.Ext(st.File.Name))

	allRows, errorRows := buildRows(entries)
	if _, err := s.store.Upload(ctx, s.exportFolder, base+"_processed_all.csv", writeCSV(allRows)); err != nil {
		return fmt.Errorf("upload full report: %w", err)
	}
	if _, err := s.store.Upload(ctx, s.exportFolder, base+"_only_errors.csv", writeCSV(errorRows)); err != nil {
		return fmt.Errorf("upload errors report: %w", err)
	}

	if s.dumpPayloads {
		dump, err := payloadDump(entries)
		if err != nil {
			return fmt.Errorf("serialize payload dump: %w", err)
		}
		if _, err := s.store.Upload(ctx, s.exportFolder, base+"_payloads.json", dump); err != nil {
			return fmt.Errorf("upload payload dump: %w", err)
		}
	}

	if st.Wave != domain.WaveSecond && st.File.ID != "" {
		if err := s.store.Move(ctx, st.File.ID, s.processedFolder); err != nil {
			return fmt.Errorf("move %s to %s: %w", st.File.Name, s.processedFolder, err)
		}
	}

	logger.Info("reports exported",
		zap.Int("rows", len(allRows)),
		zap.Int("errorRows", len(errorRows)),
	)
	return nil
}

// buildRows renders every source line of every document in ledger order,
// status column last. The error report carries the lines of errored or
// synthetic-key documents only, under the same header.
func buildRows(entries []*domain.LedgerEntry) (all [][]string, errored [][]string) {
	var header []string
	for _, entry := range entries {
		isError := entry.Synthetic || !accepted(entry)
		for _, rec := range entry.Records {
			if header == nil {
				header = append(append([]string{}, rec.Header...), "Status")
				all = append(all, header)
				errored = append(errored, header)
			}
			row := rec.Values()
			all = append(all, row)
			if isError {
				errored = append(errored, row)
			}
		}
	}
	return all, errored
}

func accepted(entry *domain.LedgerEntry) bool {
	return entry.Class() == domain.ClassAccepted
}

func writeCSV(rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = fieldDelimiter
	for _, row := range rows {
		// csv.Writer only errors on a broken underlying writer, which a
		// bytes.Buffer never is.
		_ = w.Write(row)
	}
	w.Flush()
	return buf.Bytes()
}

func payloadDump(entries []*domain.LedgerEntry) ([]byte, error) {
	type dumped struct {
		Key     string          `json:"key"`
		Status  string          `json:"status"`
		Payload *domain.Payload `json:"payload"`
	}
	out := make([]dumped, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dumped{Key: entry.Key, Status: entry.Status, Payload: entry.Payload})
	}
	return json.MarshalIndent(out, "", "  ")
}
