package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Dispensing splits by sub-plan: capitated dispensings post as inventory
// exits, event dispensings as delivery notes against the member's payer.
const (
	SeriesDispensingCapitated = 77
	SeriesDispensingEvent     = 81
)

type dispensing struct{}

func init() { register(dispensing{}) }

func (dispensing) Name() string     { return "dispensing" }
func (dispensing) KeyField() string { return "ReferenceNo" }

func (dispensing) RequiredHeader() []string {
	return []string{
		"DispensedDate", "SubPlan", "TaxId", "Plan", "MemberId",
		"MemberName", "ReferenceNo", "MemberLevel", "AuthorizationNo",
		"PrescriptionNo", "DispensedBy", "ProductCode", "CostCenter",
		"Lot", "DispensedQty", "Price",
	}
}

func (dispensing) Endpoint(p *domain.Payload) string {
	if p.Series == SeriesDispensingCapitated {
		return EndpointInventoryExit
	}
	return EndpointDeliveryNotes
}

func (s dispensing) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	series := m.Series(rec, map[Kind]int{
		KindCapitated: SeriesDispensingCapitated,
		KindEvent:     SeriesDispensingEvent,
	})
	p := &domain.Payload{
		Series:        series,
		DocDate:       m.Date(rec, "DispensedDate"),
		TaxDate:       m.Date(rec, "DispensedDate"),
		Comments:      m.Comment(rec, "MemberId"),
		PartnerCode:   m.PartnerCode(rec, "CL"),
		Reference:     key,
		MemberID:      rec.Get("MemberId"),
		MemberName:    m.MemberName(rec),
		MemberLevel:   m.Int(rec, "MemberLevel"),
		Plan:          m.Plan(rec),
		Authorization: m.Authorization(rec, AuthEventOnly, series == SeriesDispensingEvent),
		Prescription:  rec.Get("PrescriptionNo"),
		DispensedBy:   rec.Get("DispensedBy"),
	}
	switch series {
	case SeriesDispensingCapitated:
		p.JournalMemo = "Automatic dispensing scenario"
	case SeriesDispensingEvent:
		p.CardCode = m.PartnerCode(rec, "CL")
	}
	p.DocumentLines = []domain.LineItem{*s.BuildLine(ctx, m, rec)}
	return p
}

func (dispensing) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	qty := m.Int(rec, "DispensedQty")
	line := &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      qty,
		WarehouseCode: rec.Get("CostCenter"),
		CostingCode:   m.CostingCode(ctx, rec),
		CostingCode2:  rec.Get("CostCenter"),
		CostingCode3:  m.ContractCode(rec),
		Batches: []domain.BatchAllocation{
			{BatchNumber: rec.Get("Lot"), Quantity: qty},
		},
	}

	// Capitated exits book against the plan's expense account; event
	// deliveries carry the sale price instead. Lines whose sub-plan
	// resolved to the joker get the account so the export stays readable.
	series := m.Series(rec, map[Kind]int{
		KindCapitated: SeriesDispensingCapitated,
		KindEvent:     SeriesDispensingEvent,
	})
	if series == SeriesDispensingEvent {
		line.Price = m.Float(rec, "Price")
	} else {
		line.AccountCode = m.ExpenseAccount(rec, "SubPlan", "")
	}
	return line
}

func (dispensing) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeDocumentLines(p, line)
}
