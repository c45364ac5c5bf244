// Package doctype defines one strategy per ERP document type. Each
// strategy knows its key field, its required input header, how to build a
// document header and a line item from one input record, and how a second
// line for the same product merges into an existing document. The
// registry is a closed set: adding a document type means adding a
// strategy, not another branch in a shared conditional.
package doctype

import (
	"context"
	"fmt"
	"sort"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Series kinds select the ERP numbering series (and endpoint) by the
// sub-plan that arrives on the record.
type Kind string

const (
	KindCapitated Kind = "CAPITATED"
	KindEvent     Kind = "EVENT"
	// KindSingle is used by document types with exactly one series.
	KindSingle Kind = "SINGLE"
)

// JokerSeries is assigned when the sub-plan names neither a capitated nor
// an event arrangement; the document is already errored by then, the
// series only keeps the payload well-formed for exports.
const JokerSeries = 99

// NotApplicableWarehouse marks documents that must not be submitted: the
// ERP has no costing entity for this location, they are ledgered with a
// fixed synthetic status instead.
const NotApplicableWarehouse = "391"

// AuthRule decides how the authorization-number field is carried. The
// business rule differs per document type and has drifted historically,
// so it is configuration on the strategy rather than logic inside it.
type AuthRule int

const (
	// AuthBlank leaves the authorization empty.
	AuthBlank AuthRule = iota
	// AuthEventOnly coerces the authorization to an integer for
	// event-series documents and leaves it blank otherwise.
	AuthEventOnly
	// AuthAlways always coerces the authorization to an integer.
	AuthAlways
)

// Strategy is the per-document-type contract.
type Strategy interface {
	// Name is the module name used on the CLI, in folder names and in
	// the ledger.
	Name() string
	// KeyField is the input column holding the document key.
	KeyField() string
	// RequiredHeader is the minimum set of input columns.
	RequiredHeader() []string
	// Endpoint routes a built payload to its ERP resource.
	Endpoint(p *domain.Payload) string
	// BuildHeader maps the first record of a key into a full payload,
	// including its first line item.
	BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload
	// BuildLine maps one record into a line item.
	BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem
	// Merge folds a line item for an already-known key into the payload.
	Merge(p *domain.Payload, line *domain.LineItem)
}

// Updater is implemented by strategies whose payloads modify an existing
// ERP object in place instead of creating a new document. The submission
// step routes them through PATCH and records the updated object's entry
// as the accepted reference.
type Updater interface {
	UpdatesInPlace() bool
}

// ERP service-layer resources, relative to the configured base URL.
const (
	EndpointInventoryExit  = "InventoryGenExits"
	EndpointInventoryEntry = "InventoryGenEntries"
	EndpointDeliveryNotes  = "DeliveryNotes"
	EndpointStockTransfers = "StockTransfers"
	EndpointPurchaseNotes  = "PurchaseDeliveryNotes"
	EndpointCreditNotes    = "CreditNotes"
	EndpointInvoices       = "Invoices"
	EndpointPayments       = "IncomingPayments"
)

// InternalPartnerCode is the company's own business partner record, used
// on documents that move stock without an external counterparty.
const InternalPartnerCode = "PRV900073223"

// NotApplicable reports whether a payload's designated warehouse is the
// not-applicable sentinel.
func NotApplicable(p *domain.Payload) bool {
	if p == nil {
		return false
	}
	if p.FromWarehouse == NotApplicableWarehouse || p.ToWarehouse == NotApplicableWarehouse {
		return true
	}
	for _, line := range p.Lines() {
		if line.WarehouseCode == NotApplicableWarehouse {
			return true
		}
	}
	return false
}

var registry = map[string]Strategy{}

func register(s Strategy) {
	registry[s.Name()] = s
}

// Lookup returns the strategy for a module name.
func Lookup(name string) (Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown module %q", domain.ErrValidation, name)
	}
	return s, nil
}

// Names lists the registered module names, sorted for stable CLI output.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
