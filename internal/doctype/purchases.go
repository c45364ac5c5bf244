package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Purchases arrive in dispensing units but the ERP books them in packs,
// so the line quantity is the unit quantity divided by the item's
// packaging size. The lot allocation keeps the unit quantity.
const SeriesPurchases = 80

type purchases struct{}

func init() { register(purchases{}) }

func (purchases) Name() string     { return "purchases" }
func (purchases) KeyField() string { return "DocumentNo" }

func (purchases) RequiredHeader() []string {
	return []string{
		"PurchaseDate", "DocumentNo", "TaxId", "CostCenter", "InvoiceNo",
		"ProductCode", "Quantity", "Lot", "Price", "ExpiryDate",
	}
}

func (purchases) Endpoint(*domain.Payload) string { return EndpointPurchaseNotes }

func (s purchases) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	p := &domain.Payload{
		Series:    SeriesPurchases,
		DocDate:   m.Date(rec, "PurchaseDate"),
		NumAtCard: rec.Get("InvoiceNo"),
		CardCode:  m.PartnerCode(rec, "PRV"),
		Comments:  m.Comment(rec, "DocumentNo"),
		Reference: key,
	}
	p.DocumentLines = []domain.LineItem{*s.BuildLine(ctx, m, rec)}
	return p
}

func (purchases) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	units := m.Int(rec, "Quantity")
	return &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      m.PackagingQuantity(ctx, rec, units),
		UnitPrice:     m.Float(rec, "Price"),
		WarehouseCode: rec.Get("CostCenter"),
		Batches: []domain.BatchAllocation{
			{BatchNumber: rec.Get("Lot"), Quantity: units, ExpiryDate: m.Date(rec, "ExpiryDate")},
		},
	}
}

func (purchases) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeDocumentLines(p, line)
}
