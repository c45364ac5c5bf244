package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Inventory adjustments come in two flavors sharing one input layout:
// exits remove stock, entries add it back priced with an expiry-dated
// lot. The adjustment type column picks the expense account.
const (
	SeriesAdjustmentExit  = 82
	SeriesAdjustmentEntry = 83
)

type adjustments struct {
	name      string
	series    int
	endpoint  string
	direction string
}

func init() {
	register(adjustments{
		name:      "adjustments_exit",
		series:    SeriesAdjustmentExit,
		endpoint:  EndpointInventoryExit,
		direction: "exit",
	})
	register(adjustments{
		name:      "adjustments_entry",
		series:    SeriesAdjustmentEntry,
		endpoint:  EndpointInventoryEntry,
		direction: "entry",
	})
}

func (a adjustments) Name() string   { return a.name }
func (adjustments) KeyField() string { return "DocumentNo" }

func (a adjustments) RequiredHeader() []string {
	header := []string{
		"AdjustmentDate", "ProductCode", "AdjustmentType", "CostCenter",
		"DocumentNo", "Lot", "Quantity",
	}
	if a.direction == "entry" {
		header = append(header, "Price", "ExpiryDate")
	}
	return header
}

func (a adjustments) Endpoint(*domain.Payload) string { return a.endpoint }

func (a adjustments) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	p := &domain.Payload{
		Series:      a.series,
		DocDate:     m.Date(rec, "AdjustmentDate"),
		DocDueDate:  m.Date(rec, "AdjustmentDate"),
		PartnerCode: InternalPartnerCode,
		Comments:    m.Comment(rec, "DocumentNo"),
		Reference:   key,
	}
	p.DocumentLines = []domain.LineItem{*a.BuildLine(ctx, m, rec)}
	return p
}

func (a adjustments) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	qty := m.Int(rec, "Quantity")
	line := &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      qty,
		WarehouseCode: rec.Get("CostCenter"),
		AccountCode:   m.ExpenseAccount(rec, "AdjustmentType", a.direction),
		CostingCode:   m.CostingCode(ctx, rec),
		CostingCode2:  rec.Get("CostCenter"),
	}
	batch := domain.BatchAllocation{BatchNumber: rec.Get("Lot"), Quantity: qty}
	if a.direction == "entry" {
		line.UnitPrice = m.Float(rec, "Price")
		batch.ExpiryDate = m.Date(rec, "ExpiryDate")
	}
	line.Batches = []domain.BatchAllocation{batch}
	return line
}

func (adjustments) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeDocumentLines(p, line)
}
