package doctype

import (
	"context"
	"fmt"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Lot-expiry adjustments correct the expiration date stored on a lot's
// master record. Unlike every other document type they create nothing:
// the lot record, addressed by its AbsEntry, is updated in place. A lot
// repeated in the file keeps the date of its first occurrence.
type lotExpiry struct{}

func init() { register(lotExpiry{}) }

func (lotExpiry) Name() string     { return "lot_expiry" }
func (lotExpiry) KeyField() string { return "Lot" }

func (lotExpiry) RequiredHeader() []string {
	return []string{"ExpiryDate", "ProductCode", "Lot"}
}

func (lotExpiry) UpdatesInPlace() bool { return true }

func (lotExpiry) Endpoint(p *domain.Payload) string {
	return fmt.Sprintf("BatchNumberDetails(%d)", p.AbsEntry)
}

func (lotExpiry) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, _ string) *domain.Payload {
	// The lot record has no reference field; the ledger key alone ties
	// the update back to its source lines.
	return &domain.Payload{
		AbsEntry:       m.LotEntry(ctx, rec),
		ExpirationDate: m.Date(rec, "ExpiryDate"),
	}
}

func (lotExpiry) BuildLine(context.Context, *Mapper, *domain.Record) *domain.LineItem {
	return nil
}

func (lotExpiry) Merge(*domain.Payload, *domain.LineItem) {}
