package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Invoicing exists only for event dispensings: the invoice bills the
// payer for deliveries already registered, so each line is based on the
// delivery note. A 100% withholding block trues up the retention.
const SeriesInvoicing = 4

type invoicing struct{}

func init() { register(invoicing{}) }

func (invoicing) Name() string     { return "invoicing" }
func (invoicing) KeyField() string { return "ReferenceNo" }

func (invoicing) RequiredHeader() []string {
	return []string{
		"InvoiceDate", "TaxId", "Plan", "SubPlan", "InvoiceNo", "MemberId",
		"MemberName", "ReferenceNo", "MemberLevel", "AuthorizationNo",
		"PrescriptionNo", "ProductCode", "CostCenter", "DispensedQty", "Price",
	}
}

func (invoicing) Endpoint(*domain.Payload) string { return EndpointInvoices }

func (s invoicing) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	series := m.Series(rec, map[Kind]int{KindEvent: SeriesInvoicing})
	p := &domain.Payload{
		Series:        series,
		DocDate:       m.Date(rec, "InvoiceDate"),
		TaxDate:       m.Date(rec, "InvoiceDate"),
		NumAtCard:     rec.Get("InvoiceNo"),
		CardCode:      m.PartnerCode(rec, "CL"),
		Comments:      m.Comment(rec, "InvoiceNo"),
		PartnerCode:   m.PartnerCode(rec, "CL"),
		Reference:     key,
		MemberID:      rec.Get("MemberId"),
		MemberName:    m.MemberName(rec),
		MemberLevel:   m.Int(rec, "MemberLevel"),
		Plan:          m.Plan(rec),
		Authorization: m.Authorization(rec, AuthEventOnly, series == SeriesInvoicing),
		Prescription:  rec.Get("PrescriptionNo"),
		Withholding: []domain.WithholdingTax{
			{WTCode: "RFEV", Rate: 100},
		},
	}
	p.DocumentLines = []domain.LineItem{*s.BuildLine(ctx, m, rec)}
	return p
}

func (invoicing) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	line := &domain.LineItem{
		ItemCode:      m.ItemCode(rec),
		Quantity:      m.Int(rec, "DispensedQty"),
		Price:         m.Float(rec, "Price"),
		WarehouseCode: rec.Get("CostCenter"),
		BaseType:      "15",
		CostingCode:   m.CostingCode(ctx, rec),
		CostingCode2:  rec.Get("CostCenter"),
		CostingCode3:  m.ContractCode(rec),
	}
	if delivery, ok := m.DeliveryFor(ctx, rec, rec.Get("ReferenceNo")); ok {
		line.BaseEntry = delivery.DocEntry
		line.BaseLine = delivery.BaseLine
	}
	return line
}

// Invoice lines stay one per source line even when a product repeats,
// mirroring the delivery they bill.
func (invoicing) Merge(p *domain.Payload, line *domain.LineItem) {
	appendDocumentLine(p, line)
}
