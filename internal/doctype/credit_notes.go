package doctype

import (
	"context"
	"strconv"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Credit notes reverse a previously invoiced dispensing. Each line points
// back at the originating delivery registered in the ERP, carrying its
// document entry, line and stock price.
const SeriesCreditNotes = 78

type creditNotes struct{}

func init() { register(creditNotes{}) }

func (creditNotes) Name() string     { return "credit_notes" }
func (creditNotes) KeyField() string { return "ReferenceNo" }

func (creditNotes) RequiredHeader() []string {
	return []string{
		"InvoiceDate", "TaxId", "Plan", "ReferenceNo", "MemberName",
		"MemberLevel", "AuthorizationNo", "PrescriptionNo", "ProductCode",
		"CostCenter", "DispensedQty", "Price", "Lot", "DispensedBy",
	}
}

func (creditNotes) Endpoint(*domain.Payload) string { return EndpointCreditNotes }

func (s creditNotes) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	p := &domain.Payload{
		Series:        SeriesCreditNotes,
		DocDate:       m.Date(rec, "InvoiceDate"),
		TaxDate:       m.Date(rec, "InvoiceDate"),
		NumAtCard:     rec.Get("InvoiceNo"),
		CardCode:      m.PartnerCode(rec, "CL"),
		Comments:      m.Comment(rec, "DispensedBy"),
		Reference:     key,
		MemberName:    m.MemberName(rec),
		MemberLevel:   m.Int(rec, "MemberLevel"),
		Plan:          m.Plan(rec),
		Authorization: strconv.Itoa(m.Int(rec, "AuthorizationNo")),
		Prescription:  rec.Get("PrescriptionNo"),
		DispensedBy:   rec.Get("DispensedBy"),
	}
	p.DocumentLines = []domain.LineItem{*s.BuildLine(ctx, m, rec)}
	return p
}

func (creditNotes) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	qty := m.Int(rec, "DispensedQty")
	line := &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      qty,
		Price:         m.Float(rec, "Price"),
		WarehouseCode: rec.Get("CostCenter"),
		BaseType:      "13",
		CostingCode:   m.CostingCode(ctx, rec),
		CostingCode2:  rec.Get("CostCenter"),
		CostingCode3:  m.ContractCode(rec),
		Batches: []domain.BatchAllocation{
			{BatchNumber: rec.Get("Lot"), Quantity: qty},
		},
	}
	if delivery, ok := m.DeliveryFor(ctx, rec, rec.Get("ReferenceNo")); ok {
		line.BaseEntry = delivery.DocEntry
		line.BaseLine = delivery.BaseLine
		line.StockPrice = delivery.StockPrice
	}
	return line
}

func (creditNotes) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeDocumentLines(p, line)
}
