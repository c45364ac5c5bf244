package erp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/farmalink/erpbridge/internal/domain"
)

// SubmitError classifies a failed ERP call. StatusText carries the tagged
// text written to the ledger and mirrored onto source lines.
type SubmitError struct {
	Class   domain.StatusClass
	Message string
	Cause   error
}

func (e *SubmitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 3)
	parts = append(parts, "erp error")
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *SubmitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// StatusText returns the tagged status string for the ledger, e.g.
// "[ERP] invalid lot" or "[TIMEOUT] no response from the API within 30s".
func (e *SubmitError) StatusText() string {
	switch e.Class {
	case domain.ClassTimeout:
		return fmt.Sprintf("%s %s", domain.TimeoutTag, e.Message)
	case domain.ClassConnection:
		return fmt.Sprintf("%s %s", domain.ConnectionTag, e.Message)
	default:
		return fmt.Sprintf("%s %s", domain.UpstreamTag, e.Message)
	}
}

// classify wraps a transport-level error from the HTTP client.
func classify(err error) *SubmitError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &SubmitError{Class: domain.ClassTimeout, Message: "no response from the API within the deadline", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SubmitError{Class: domain.ClassTimeout, Message: "no response from the API within the deadline", Cause: err}
	}

	return &SubmitError{Class: domain.ClassConnection, Message: "could not reach the API", Cause: err}
}

var linePositionMarker = regexp.MustCompile(`\[line:\s*\d+\]`)

// CleanMessage normalizes an ERP rejection text for storage: commas would
// break the status phrase separator used in reports, and field/position
// markers only make sense inside the ERP UI.
func CleanMessage(text string) string {
	text = strings.ReplaceAll(text, ",", ".")
	text = strings.ReplaceAll(text, "[DocumentLines.ItemCode]", "")
	text = strings.ReplaceAll(text, "[DocumentLines.AccountCode]", "")
	text = linePositionMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ShortMessage collapses known rejection texts to a canonical short
// phrase for the summary report. Unrecognized texts pass through.
func ShortMessage(text string) string {
	switch {
	case strings.Contains(text, "cost center not recognized"):
		return "Cost center not recognized."
	case strings.Contains(text, "no deliveries found for reference"):
		return "No deliveries found for reference."
	case strings.Contains(text, "specify a valid serial/lot number"):
		return "Invalid lot."
	case strings.Contains(text, "negative inventory"):
		return "Negative inventory."
	case strings.Contains(text, "no matching records"):
		return "No matching records."
	case strings.Contains(text, "insufficient quantity"):
		return "Insufficient quantity for item."
	}
	return text
}

// LotMismatch reports whether a stored rejection text indicates the ERP
// allocated different lots than the ones declared locally. Those
// documents get a quantity-reconciliation rebuild before resubmission
// instead of a plain retry.
func LotMismatch(status string) bool {
	return strings.Contains(status, "specify a valid serial/lot number") ||
		strings.Contains(status, "Invalid lot")
}
