package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Voided dispensings return the dispensed stock as inventory entries.
const SeriesVoidedDispensing = 83

type voidedDispensing struct{}

func init() { register(voidedDispensing{}) }

func (voidedDispensing) Name() string     { return "voided_dispensing" }
func (voidedDispensing) KeyField() string { return "ReferenceNo" }

func (voidedDispensing) RequiredHeader() []string {
	return []string{
		"ReferenceNo", "VoidDate", "TaxId", "CostCenter", "DocumentNo",
		"Plan", "SubPlan", "MemberId", "MemberName", "MemberLevel",
		"AuthorizationNo", "PrescriptionNo", "ProductCode", "Quantity",
		"Lot", "Price", "DispensedBy", "ExpiryDate",
	}
}

func (voidedDispensing) Endpoint(*domain.Payload) string { return EndpointInventoryEntry }

func (s voidedDispensing) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	p := &domain.Payload{
		Series:        SeriesVoidedDispensing,
		DocDate:       m.Date(rec, "VoidDate"),
		DocDueDate:    m.Date(rec, "VoidDate"),
		Comments:      m.Comment(rec, "DocumentNo"),
		PartnerCode:   m.PartnerCode(rec, "CL"),
		Reference:     key,
		MemberID:      rec.Get("MemberId"),
		MemberName:    m.MemberName(rec),
		MemberLevel:   m.Int(rec, "MemberLevel"),
		Plan:          m.Plan(rec),
		Authorization: m.Authorization(rec, AuthAlways, false),
		Prescription:  rec.Get("PrescriptionNo"),
		DispensedBy:   rec.Get("DispensedBy"),
	}
	p.DocumentLines = []domain.LineItem{*s.BuildLine(ctx, m, rec)}
	return p
}

func (voidedDispensing) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	qty := m.Int(rec, "Quantity")
	return &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      qty,
		UnitPrice:     m.Float(rec, "Price"),
		WarehouseCode: rec.Get("CostCenter"),
		AccountCode:   m.ExpenseAccount(rec, "SubPlan", ""),
		CostingCode:   m.CostingCode(ctx, rec),
		CostingCode2:  rec.Get("CostCenter"),
		CostingCode3:  m.ContractCode(rec),
		Batches: []domain.BatchAllocation{
			{BatchNumber: rec.Get("Lot"), Quantity: qty, ExpiryDate: m.Date(rec, "ExpiryDate")},
		},
	}
}

func (voidedDispensing) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeDocumentLines(p, line)
}
