package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Received payments record customer money against open invoices. One
// document is built per paying partner; every record adds one applied
// invoice to the payment's allocation collection and its amount to the
// cash total. The invoice is referenced by the DocEntry resolved from
// the invoice number on the record.
const SeriesPayments = 79

// Cash and control accounts for received payments. One account pair
// serves all branches until accounting delivers a per-branch mapping.
const (
	paymentCashAccount    = "1105050103"
	paymentControlAccount = "2805950101"
)

type payments struct{}

func init() { register(payments{}) }

func (payments) Name() string     { return "payments" }
func (payments) KeyField() string { return "TaxId" }

func (payments) RequiredHeader() []string {
	return []string{"PaymentDate", "TaxId", "InvoiceNo", "Amount"}
}

func (payments) Endpoint(*domain.Payload) string { return EndpointPayments }

func (s payments) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	partner := m.PartnerCode(rec, "CL")
	p := &domain.Payload{
		Series:         SeriesPayments,
		DocDate:        m.Date(rec, "PaymentDate"),
		CardCode:       partner,
		PartnerCode:    partner,
		Remarks:        m.Comment(rec, "InvoiceNo"),
		JournalRemarks: m.Comment(rec, "InvoiceNo"),
		CashAccount:    paymentCashAccount,
		ControlAccount: paymentControlAccount,
		Reference:      key,
	}
	s.Merge(p, s.BuildLine(ctx, m, rec))
	return p
}

// BuildLine carries one applied invoice: the resolved invoice entry and
// the amount paid against it.
func (payments) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	return &domain.LineItem{
		BaseEntry: m.InvoiceEntry(ctx, rec),
		Price:     m.Float(rec, "Amount"),
	}
}

func (payments) Merge(p *domain.Payload, line *domain.LineItem) {
	p.Invoices = append(p.Invoices, domain.PaymentInvoice{
		LineNum:     len(p.Invoices),
		DocEntry:    line.BaseEntry,
		SumApplied:  line.Price,
		InvoiceType: domain.InvoiceTypeInvoice,
	})
	p.CashSum += line.Price
}
