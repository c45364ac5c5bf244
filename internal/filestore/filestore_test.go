package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type flakyStore struct {
	failures int
	calls    int
	files    []File
}

func (f *flakyStore) List(context.Context, string) ([]File, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return f.files, nil
}

func (f *flakyStore) Read(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

func (f *flakyStore) Move(context.Context, string, string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient failure")
	}
	return nil
}

func (f *flakyStore) Upload(context.Context, string, string, []byte) (File, error) {
	return File{}, errors.New("not used")
}

func newTestRetrier(store Store, attempts int) (*Retrier, *[]time.Duration) {
	r := NewRetrier(store, attempts, zap.NewNop())
	waits := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return r, waits
}

func TestRetrierFibonacciWaits(t *testing.T) {
	t.Parallel()
	store := &flakyStore{failures: 4, files: []File{{ID: "in/a.csv", Name: "a.csv"}}}
	r, waits := newTestRetrier(store, 6)

	files, err := r.List(context.Background(), "in")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}

	want := []time.Duration{time.Second, time.Second, 2 * time.Second, 3 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Errorf("wait %d = %v, want %v", i, (*waits)[i], w)
		}
	}
}

func TestRetrierSurfacesHardFailure(t *testing.T) {
	t.Parallel()
	store := &flakyStore{failures: 10}
	r, _ := newTestRetrier(store, 3)

	if err := r.Move(context.Background(), "in/a.csv", "done"); err == nil {
		t.Fatal("expected a hard failure after retries were exhausted")
	}
	if store.calls != 3 {
		t.Errorf("calls = %d, want 3", store.calls)
	}
}

func TestRetrierStopsOnCancel(t *testing.T) {
	t.Parallel()
	store := &flakyStore{failures: 10}
	r := NewRetrier(store, 5, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Move(ctx, "in/a.csv", "done"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "inbox"), 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := NewLocalStore(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	uploaded, err := store.Upload(ctx, "inbox", "dispensing.csv", []byte("ReferenceNo\n123\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	files, err := store.List(ctx, "inbox")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 1 || files[0].Name != "dispensing.csv" {
		t.Fatalf("files = %+v, want the uploaded file", files)
	}

	rc, err := store.Read(ctx, uploaded.ID)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "ReferenceNo\n123\n" {
		t.Errorf("content = %q", content)
	}

	if err := store.Move(ctx, uploaded.ID, "processed"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	files, _ = store.List(ctx, "inbox")
	if len(files) != 0 {
		t.Errorf("inbox still has %d files after move", len(files))
	}
	files, _ = store.List(ctx, "processed")
	if len(files) != 1 {
		t.Errorf("processed has %d files, want 1", len(files))
	}
}
