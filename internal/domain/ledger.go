package domain

import "time"

// LedgerEntry is the durable counterpart of a Document: one row per
// document key per input file, tracking whether the document reached the
// ERP and with what status. Entries live only until the owning file is
// fully resolved and exported, then they are purged.
type LedgerEntry struct {
	ID        uint
	RunID     uint
	Module    string
	FileName  string
	Key       string
	Synthetic bool
	Submitted bool
	Status    string
	Payload   *Payload
	Records   []*Record
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Class returns the entry's status classification.
func (e *LedgerEntry) Class() StatusClass {
	return Classify(e.Status)
}

// Retryable reports whether a submitted entry is eligible for the
// second-wave pass.
func (e *LedgerEntry) Retryable() bool {
	return e.Submitted && e.Class().Retryable()
}
