package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/filestore"
)

// testStrategy is a minimal document type for pipeline wiring tests; the
// real mapping rules are covered in their own package.
type testStrategy struct{}

func (testStrategy) Name() string     { return "dispensing" }
func (testStrategy) KeyField() string { return "ReferenceNo" }
func (testStrategy) RequiredHeader() []string {
	return []string{"ReferenceNo", "ProductCode", "DispensedQty"}
}
func (testStrategy) Endpoint(*domain.Payload) string { return "InventoryGenExits" }

func (s testStrategy) BuildHeader(ctx context.Context, m *doctype.Mapper, rec *domain.Record, key string) *domain.Payload {
	return &domain.Payload{
		Series:        77,
		Reference:     key,
		DocumentLines: []domain.LineItem{*s.BuildLine(ctx, m, rec)},
	}
}

func (testStrategy) BuildLine(_ context.Context, _ *doctype.Mapper, rec *domain.Record) *domain.LineItem {
	qty, _ := strconv.Atoi(rec.Get("DispensedQty"))
	return &domain.LineItem{
		ItemCode: rec.Get("ProductCode"),
		Quantity: qty,
		Batches:  []domain.BatchAllocation{{BatchNumber: "A", Quantity: qty}},
	}
}

func (testStrategy) Merge(p *domain.Payload, line *domain.LineItem) {
	for i := range p.DocumentLines {
		if p.DocumentLines[i].ItemCode == line.ItemCode {
			p.DocumentLines[i].Quantity += line.Quantity
			p.DocumentLines[i].Batches = append(p.DocumentLines[i].Batches, line.Batches...)
			return
		}
	}
	line.LineNum = len(p.DocumentLines)
	p.DocumentLines = append(p.DocumentLines, *line)
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
	updates int
	deletes int
	nextID  uint
}

func (l *fakeLedger) CreateBatch(_ context.Context, entries []*domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		l.nextID++
		entry.ID = l.nextID
		l.entries = append(l.entries, entry)
	}
	return nil
}

func (l *fakeLedger) ByFile(_ context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.LedgerEntry
	for _, entry := range l.entries {
		if entry.Module == module && entry.FileName == fileName {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *fakeLedger) Pending(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	all, _ := l.ByFile(ctx, module, fileName)
	var out []*domain.LedgerEntry
	for _, entry := range all {
		if !entry.Submitted {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *fakeLedger) Retryable(ctx context.Context, module, fileName string) ([]*domain.LedgerEntry, error) {
	all, _ := l.ByFile(ctx, module, fileName)
	var out []*domain.LedgerEntry
	for _, entry := range all {
		if entry.Retryable() {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *fakeLedger) UpdateSubmission(_ context.Context, _ *domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates++
	return nil
}

func (l *fakeLedger) Files(_ context.Context, module string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range l.entries {
		if entry.Module != module {
			continue
		}
		if _, ok := seen[entry.FileName]; ok {
			continue
		}
		seen[entry.FileName] = struct{}{}
		out = append(out, entry.FileName)
	}
	return out, nil
}

func (l *fakeLedger) DeleteByFile(_ context.Context, module, fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deletes++
	kept := l.entries[:0]
	for _, entry := range l.entries {
		if entry.Module != module || entry.FileName != fileName {
			kept = append(kept, entry)
		}
	}
	l.entries = kept
	return nil
}

type submitResult struct {
	docEntry int
	err      error
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []string
	patches []string
	results map[string]submitResult
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, payload *domain.Payload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload.Reference)
	if res, ok := f.results[payload.Reference]; ok {
		return res.docEntry, res.err
	}
	return 1000, nil
}

func (f *fakeSubmitter) Patch(_ context.Context, endpoint string, _ *domain.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, endpoint)
	if res, ok := f.results[endpoint]; ok {
		return res.err
	}
	return nil
}

func (f *fakeSubmitter) called(reference string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range f.calls {
		if ref == reference {
			return true
		}
	}
	return false
}

type stubDirectory struct {
	movements map[string][]domain.Movement
}

func (stubDirectory) CostingCode(context.Context, string) (string, error) { return "DIM110", nil }
func (stubDirectory) BinEntry(context.Context, string) (int, error)       { return 7, nil }
func (stubDirectory) LotEntry(context.Context, string) (int, error)       { return 3, nil }
func (stubDirectory) PackagingUnits(context.Context, string) (int, error) { return 1, nil }
func (stubDirectory) InvoiceEntry(context.Context, string) (int, error)   { return 7001, nil }
func (stubDirectory) Deliveries(context.Context, string) ([]erp.Delivery, error) {
	return nil, nil
}
func (d stubDirectory) Movements(_ context.Context, reference string) ([]domain.Movement, error) {
	return d.movements[reference], nil
}

type memStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
	moves   map[string]string
}

func newMemStore() *memStore {
	return &memStore{uploads: make(map[string][]byte), moves: make(map[string]string)}
}

func (s *memStore) List(context.Context, string) ([]filestore.File, error) { return nil, nil }

func (s *memStore) Read(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *memStore) Move(_ context.Context, id, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves[id] = folder
	return nil
}

func (s *memStore) Upload(_ context.Context, folder, name string, content []byte) (filestore.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[folder+"/"+name] = content
	return filestore.File{ID: folder + "/" + name, Name: name}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []map[string]any
}

func (n *recordingNotifier) Notify(_ context.Context, subject string, body map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

type failingStep struct{ name string }

func (s failingStep) Name() string                      { return s.name }
func (s failingStep) Run(context.Context, *State) error { return fmt.Errorf("boom") }

type okStep struct{ name string }

func (s okStep) Name() string                      { return s.name }
func (s okStep) Run(context.Context, *State) error { return nil }

func ledgerEntry(key, status string, submitted bool) *domain.LedgerEntry {
	rec := domain.NewRecord(
		[]string{"ReferenceNo", "ProductCode", "DispensedQty"},
		[]string{key, "7703153035044", "9"},
		2,
	)
	rec.SetStatus(status)
	return &domain.LedgerEntry{
		Module:    "dispensing",
		FileName:  "disp_20240220.csv",
		Key:       key,
		Submitted: submitted,
		Status:    status,
		Payload: &domain.Payload{
			Series:    77,
			Reference: key,
			DocumentLines: []domain.LineItem{{
				ItemCode: "7703153035044",
				Quantity: 9,
				Batches:  []domain.BatchAllocation{{BatchNumber: "A", Quantity: 9}},
			}},
		},
		Records: []*domain.Record{rec},
	}
}

func TestOrchestratorNotifiesFailingStepPosition(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	orch := NewOrchestrator(notifier, zap.NewNop(),
		okStep{name: "validate"},
		failingStep{name: "persist"},
		okStep{name: "submit"},
	)

	st := &State{Strategy: testStrategy{}, Wave: domain.WaveFirst, File: filestore.File{Name: "disp.csv"}}
	err := orch.Execute(context.Background(), st)
	if err == nil {
		t.Fatal("expected step failure to propagate")
	}
	if !strings.Contains(err.Error(), "step persist") {
		t.Fatalf("error = %v, want step name", err)
	}

	if len(notifier.subjects) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.subjects))
	}
	subject := notifier.subjects[0]
	if !strings.Contains(subject, "persist") || !strings.Contains(subject, "2 of 3") {
		t.Fatalf("subject = %q, want failing step and position", subject)
	}
}

func TestOrchestratorSummaryAfterCleanPass(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	orch := NewOrchestrator(notifier, zap.NewNop(), okStep{name: "submit"})

	st := &State{Strategy: testStrategy{}, Wave: domain.WaveFirst, File: filestore.File{Name: "disp.csv"}}
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(notifier.subjects) != 1 || !strings.Contains(notifier.subjects[0], "disp.csv processed") {
		t.Fatalf("subjects = %v, want processed summary", notifier.subjects)
	}
}

func TestOrchestratorSummaryCanonicalizesFailures(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	orch := NewOrchestrator(notifier, zap.NewNop(), okStep{name: "submit"})

	st := &State{
		Strategy: testStrategy{},
		Wave:     domain.WaveFirst,
		File:     filestore.File{Name: "disp.csv"},
		Entries: []*domain.LedgerEntry{
			ledgerEntry("1001", "DocEntry: 500", true),
			ledgerEntry("1002", "[ERP] Please specify a valid serial/lot number.", true),
			ledgerEntry("1003", "[ERP] Please specify a valid serial/lot number.", true),
		},
	}
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(notifier.bodies) != 1 {
		t.Fatalf("bodies = %d, want 1", len(notifier.bodies))
	}
	failures, ok := notifier.bodies[0]["failures"].([]string)
	if !ok {
		t.Fatalf("failures missing from summary body: %v", notifier.bodies[0])
	}
	// The repeated verbose rejection collapses to one canonical phrase;
	// the accepted document contributes nothing.
	if len(failures) != 1 || failures[0] != "Invalid lot." {
		t.Fatalf("failures = %v, want single canonical phrase", failures)
	}
}
