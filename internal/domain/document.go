package domain

import "fmt"

// BatchAllocation records how part of a line item's quantity is taken
// from one inventory lot.
type BatchAllocation struct {
	BatchNumber string `json:"BatchNumber"`
	Quantity    int    `json:"Quantity"`
	ExpiryDate  string `json:"ExpiryDate,omitempty"`
}

// Bin action types for warehouse transfer allocations.
const (
	BinActionFromWarehouse = "batFromWarehouse"
	BinActionToWarehouse   = "batToWarehouse"
)

// BinAllocation is one side of a transfer's origin/destination bin pair.
type BinAllocation struct {
	BinAbsEntry    int    `json:"BinAbsEntry"`
	Quantity       int    `json:"Quantity"`
	BaseLineNumber int    `json:"BaseLineNumber"`
	BinActionType  string `json:"BinActionType"`
	SerialBaseLine int    `json:"SerialAndBatchNumbersBaseLine"`
}

// LineItem is one product movement within a document. A single line item
// may span several lot allocations, and for warehouse transfers it also
// carries the origin/destination bin allocation pair.
type LineItem struct {
	LineNum        int               `json:"LineNum,omitempty"`
	ItemCode       string            `json:"ItemCode"`
	Description    string            `json:"ItemDescription,omitempty"`
	Quantity       int               `json:"Quantity"`
	Price          float64           `json:"Price,omitempty"`
	UnitPrice      float64           `json:"UnitPrice,omitempty"`
	StockPrice     float64           `json:"StockInmPrice,omitempty"`
	WarehouseCode  string            `json:"WarehouseCode,omitempty"`
	AccountCode    string            `json:"AccountCode,omitempty"`
	CostingCode    string            `json:"CostingCode,omitempty"`
	CostingCode2   string            `json:"CostingCode2,omitempty"`
	CostingCode3   string            `json:"CostingCode3,omitempty"`
	BaseType       string            `json:"BaseType,omitempty"`
	BaseEntry      int               `json:"BaseEntry,omitempty"`
	BaseLine       int               `json:"BaseLine,omitempty"`
	Batches        []BatchAllocation `json:"BatchNumbers,omitempty"`
	BinAllocations []BinAllocation   `json:"StockTransferLinesBinAllocations,omitempty"`
}

// WithholdingTax is the retention block attached to invoice documents.
type WithholdingTax struct {
	WTCode string  `json:"WTCode"`
	Rate   float64 `json:"Rate"`
}

// InvoiceTypeInvoice marks a payment allocation against an AR invoice.
const InvoiceTypeInvoice = "it_Invoice"

// PaymentInvoice applies part of an incoming payment to one open
// invoice, referenced by the DocEntry the ERP assigned to it.
type PaymentInvoice struct {
	LineNum     int     `json:"LineNum"`
	DocEntry    int     `json:"DocEntry"`
	SumApplied  float64 `json:"SumApplied"`
	InvoiceType string  `json:"InvoiceType"`
}

// Payload is the hierarchical document submitted to the ERP service
// layer: header fields plus one line-item collection. Regular documents
// use DocumentLines; warehouse transfers use TransferLines.
type Payload struct {
	Series        int    `json:"Series,omitempty"`
	DocDate       string `json:"DocDate,omitempty"`
	TaxDate       string `json:"TaxDate,omitempty"`
	DocDueDate    string `json:"DocDueDate,omitempty"`
	CardCode      string `json:"CardCode,omitempty"`
	NumAtCard     string `json:"NumAtCard,omitempty"`
	Comments      string `json:"Comments,omitempty"`
	JournalMemo   string `json:"JournalMemo,omitempty"`
	FromWarehouse string `json:"FromWarehouse,omitempty"`
	ToWarehouse   string `json:"ToWarehouse,omitempty"`

	// Incoming payment fields.
	Remarks        string  `json:"Remarks,omitempty"`
	JournalRemarks string  `json:"JournalRemarks,omitempty"`
	CashAccount    string  `json:"CashAccount,omitempty"`
	ControlAccount string  `json:"ControlAccount,omitempty"`
	CashSum        float64 `json:"CashSum,omitempty"`

	// Lot master-data fields. AbsEntry identifies the lot record updated
	// in place; it doubles as the endpoint selector for those updates.
	AbsEntry       int    `json:"AbsEntry,omitempty"`
	ExpirationDate string `json:"ExpirationDate,omitempty"`

	// Partner and member user-defined fields.
	PartnerCode   string `json:"U_Partner,omitempty"`
	Reference     string `json:"U_Reference,omitempty"`
	MemberID      string `json:"U_MemberId,omitempty"`
	MemberName    string `json:"U_MemberName,omitempty"`
	MemberLevel   int    `json:"U_MemberLevel,omitempty"`
	Plan          string `json:"U_Plan,omitempty"`
	Authorization string `json:"U_Authorization,omitempty"`
	Prescription  string `json:"U_Prescription,omitempty"`
	DispensedBy   string `json:"U_DispensedBy,omitempty"`

	DocumentLines []LineItem       `json:"DocumentLines,omitempty"`
	TransferLines []LineItem       `json:"StockTransferLines,omitempty"`
	Invoices      []PaymentInvoice `json:"PaymentInvoices,omitempty"`
	Withholding   []WithholdingTax `json:"WithholdingTaxDataCollection,omitempty"`
}

// Lines returns whichever line-item collection the payload carries.
func (p *Payload) Lines() []LineItem {
	if len(p.TransferLines) > 0 {
		return p.TransferLines
	}
	return p.DocumentLines
}

// Document is the aggregation unit: one payload plus the ordered source
// lines that contributed to it. Synthetic marks documents created for
// lines whose key field was empty.
type Document struct {
	Key       string
	Synthetic bool
	Payload   *Payload
	Records   []*Record
}

// SyntheticKey builds the fallback key for a line with an empty document
// key, so the line is retained instead of silently dropped.
func SyntheticKey(line int) string {
	return fmt.Sprintf("no-key (%d)", line)
}

// Status returns the accumulated status of the document: the distinct
// phrases of every contributing line, in line order.
func (d *Document) Status() string {
	var out string
	for _, rec := range d.Records {
		if rec.Status == "" {
			continue
		}
		if out == "" {
			out = rec.Status
			continue
		}
		if out != rec.Status {
			out += " | " + rec.Status
		}
	}
	return out
}

// SetStatus mirrors a submission outcome onto every contributing line.
func (d *Document) SetStatus(txt string) {
	for _, rec := range d.Records {
		rec.SetStatus(txt)
	}
}
