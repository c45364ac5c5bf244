package domain

import "strings"

// StatusClass partitions every free-text document status into exactly one
// reporting class. Classification is by prefix/substring convention on the
// status text itself: the same strings are persisted, exported and mailed,
// so the text stays the single source of truth.
type StatusClass string

const (
	ClassLocal      StatusClass = "LOCAL"
	ClassUpstream   StatusClass = "UPSTREAM"
	ClassConnection StatusClass = "CONNECTION"
	ClassTimeout    StatusClass = "TIMEOUT"
	ClassAccepted   StatusClass = "ACCEPTED"
	ClassNone       StatusClass = "NONE"
)

// Status text markers. Local mapping errors carry LocalTag, ERP rejections
// UpstreamTag, and accepted documents an AcceptedPrefix followed by the
// reference identifier returned by the ERP.
const (
	LocalTag       = "[CSV]"
	UpstreamTag    = "[ERP]"
	ConnectionTag  = "[CONNECTION]"
	TimeoutTag     = "[TIMEOUT]"
	AcceptedPrefix = "DocEntry:"
)

// StatusNotApplicable is the fixed synthetic status assigned to documents
// whose warehouse code is the not-applicable sentinel; they never reach
// the ERP.
const StatusNotApplicable = AcceptedPrefix + " not applicable"

func (c StatusClass) String() string { return string(c) }

// Retryable reports whether a stored status makes the document eligible
// for the second submission wave.
func (c StatusClass) Retryable() bool {
	switch c {
	case ClassUpstream, ClassConnection, ClassTimeout:
		return true
	}
	return false
}

// Classify maps a stored status text to its class. A local error anywhere
// in the text wins: a document with any local error must never be
// submitted, regardless of what else accumulated on it.
func Classify(status string) StatusClass {
	switch {
	case status == "":
		return ClassNone
	case strings.Contains(status, LocalTag):
		return ClassLocal
	case strings.Contains(status, TimeoutTag):
		return ClassTimeout
	case strings.Contains(status, ConnectionTag):
		return ClassConnection
	case strings.Contains(status, UpstreamTag):
		return ClassUpstream
	case strings.Contains(status, AcceptedPrefix):
		return ClassAccepted
	}
	return ClassNone
}
