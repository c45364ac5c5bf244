// Package filestore abstracts the folder the input files arrive in and
// the folders processed files move to. The engine only lists, reads,
// moves and uploads; transient transport failures are retried here with
// a Fibonacci backoff so callers see either a result or a hard failure.
package filestore

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// File is one entry in a store folder.
type File struct {
	ID   string
	Name string
}

type Store interface {
	List(ctx context.Context, folder string) ([]File, error)
	Read(ctx context.Context, id string) (io.ReadCloser, error)
	Move(ctx context.Context, id, folder string) error
	Upload(ctx context.Context, folder, name string, content []byte) (File, error)
}

const defaultAttempts = 6

// Retrier wraps a Store and retries each call a fixed number of times
// with Fibonacci-spaced waits before surfacing the last error.
type Retrier struct {
	store    Store
	attempts int
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRetrier(store Store, attempts int, logger *zap.Logger) *Retrier {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{store: store, attempts: attempts, logger: logger, sleep: sleepWithContext}
}

func (r *Retrier) List(ctx context.Context, folder string) ([]File, error) {
	var files []File
	err := r.retry(ctx, "list", func() error {
		var err error
		files, err = r.store.List(ctx, folder)
		return err
	})
	return files, err
}

func (r *Retrier) Read(ctx context.Context, id string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.retry(ctx, "read", func() error {
		var err error
		rc, err = r.store.Read(ctx, id)
		return err
	})
	return rc, err
}

func (r *Retrier) Move(ctx context.Context, id, folder string) error {
	return r.retry(ctx, "move", func() error {
		return r.store.Move(ctx, id, folder)
	})
}

func (r *Retrier) Upload(ctx context.Context, folder, name string, content []byte) (File, error) {
	var file File
	err := r.retry(ctx, "upload", func() error {
		var err error
		file, err = r.store.Upload(ctx, folder, name, content)
		return err
	})
	return file, err
}

func (r *Retrier) retry(ctx context.Context, op string, fn func() error) error {
	wait, next := time.Second, time.Second
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Warn("file store call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
		wait, next = next, wait+next
	}
	return fmt.Errorf("file store %s failed after %d attempts: %w", op, r.attempts, err)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
