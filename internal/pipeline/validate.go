package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/observability"
)

const fieldDelimiter = ';'

// ValidateStep parses the input file and checks its header against the
// module's required-field set. Header failures are structural: they
// abort the file, no per-document recovery applies.
type ValidateStep struct {
	logger *zap.Logger
}

func NewValidateStep(logger *zap.Logger) *ValidateStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidateStep{logger: logger}
}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Run(ctx context.Context, st *State) error {
	// A second-wave pass works from the ledger, the file is not re-read.
	if st.Wave == domain.WaveSecond {
		return nil
	}

	reader := csv.NewReader(bytes.NewReader(st.Content))
	reader.Comma = fieldDelimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rawHeader, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: file %s has no header line: %v", domain.ErrStructural, st.File.Name, err)
	}
	header := normalizeHeader(rawHeader)

	if err := checkHeader(header, st.Strategy.RequiredHeader()); err != nil {
		return err
	}

	records := make([]*domain.Record, 0, 64)
	line := 1
	for {
		values, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: malformed line %d in %s: %v", domain.ErrStructural, line, st.File.Name, err)
		}
		if blank(values) {
			continue
		}
		records = append(records, domain.NewRecord(header, values, line))
	}

	st.Records = records
	observability.WithContextLogger(s.logger, ctx).Info("file validated",
		zap.String("file", st.File.Name),
		zap.Int("records", len(records)),
	)
	return nil
}

func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		// Strip a UTF-8 byte order mark left by spreadsheet exports.
		name = strings.TrimPrefix(name, "\ufeff")
		header[i] = name
	}
	return header
}

// checkHeader verifies that every required column is present, reporting
// all the missing ones at once.
func checkHeader(header, required []string) error {
	present := make(map[string]struct{}, len(header))
	for _, name := range header {
		present[name] = struct{}{}
	}

	var missing []string
	for _, name := range required {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if len(missing) == 1 {
		return fmt.Errorf("%w: missing required field %s", domain.ErrStructural, missing[0])
	}
	return fmt.Errorf("%w: missing required fields %s", domain.ErrStructural, strings.Join(missing, ", "))
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
