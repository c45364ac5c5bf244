package domain

import "time"

// RunState is the lifecycle state of a synchronization run.
type RunState string

const (
	RunPending   RunState = "PENDING"
	RunRunning   RunState = "RUNNING"
	RunFinalized RunState = "FINALIZED"
	RunError     RunState = "ERROR"
)

func (s RunState) String() string { return string(s) }

func (s RunState) IsValid() bool {
	switch s {
	case RunPending, RunRunning, RunFinalized, RunError:
		return true
	}
	return false
}

// Terminal reports whether a new run may start after this one.
func (s RunState) Terminal() bool {
	return s == RunFinalized || s == RunError
}

// Wave distinguishes the first submission pass from the retry pass that
// targets only previously-failed, retryable documents.
type Wave string

const (
	WaveFirst  Wave = "first"
	WaveSecond Wave = "second"
)

func (w Wave) IsValid() bool { return w == WaveFirst || w == WaveSecond }

// Run is one top-level synchronization run. At most one run may be in a
// non-terminal state at a time.
type Run struct {
	ID            uint     `gorm:"primaryKey"`
	CorrelationID string   `gorm:"type:varchar(36);not null"`
	State         RunState `gorm:"type:varchar(16);not null"`
	StartedAt     time.Time
	FinishedAt    *time.Time
}
