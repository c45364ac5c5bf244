package doctype

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/lookup"
)

// ErrorSink receives every mapping failure. The aggregator implements it
// to accumulate status text on the record and move the owning document
// key out of the successful set; mapping never aborts the batch.
type ErrorSink interface {
	RegisterError(rec *domain.Record, txt string)
}

// Mapper bundles the collaborators the field-mapping rules need: the
// accounting lookup tables, the ERP directory views, and the error sink.
type Mapper struct {
	Tables    *lookup.Tables
	Directory erp.Directory
	Sink      ErrorSink
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewMapper(tables *lookup.Tables, directory erp.Directory, sink ErrorSink, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{Tables: tables, Directory: directory, Sink: sink, Logger: logger, Now: time.Now}
}

// Comment builds the audit comment stamped on every document header,
// optionally appending one source column for traceability.
func (m *Mapper) Comment(rec *domain.Record, column string) string {
	txt := "Automatic upload " + m.Now().Format("2006-01-02 15:04") + " user: erpbridge"
	if column != "" {
		txt += fmt.Sprintf(" (%s. %s)", column, rec.Get(column))
	}
	return txt
}

func (m *Mapper) fail(rec *domain.Record, format string, args ...any) {
	txt := fmt.Sprintf("%s %s", domain.LocalTag, fmt.Sprintf(format, args...))
	m.Logger.Error("mapping error", zap.Int("line", rec.Line), zap.String("status", txt))
	m.Sink.RegisterError(rec, txt)
}

// Int floors a value to an integer. Quantities arrive as "9.0" from the
// dispensing export, so the value is parsed as a float first.
func (m *Mapper) Int(rec *domain.Record, column string) int {
	raw := rec.Get(column)
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		m.fail(rec, "%s '%s' could not be converted to an integer.", column, raw)
		return 0
	}
	return int(value)
}

// Float parses a monetary value.
func (m *Mapper) Float(rec *domain.Record, column string) float64 {
	raw := rec.Get(column)
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		m.fail(rec, "%s '%s' could not be converted to a decimal.", column, raw)
		return 0
	}
	return value
}

// Date reformats "2022-12-31 18:36:00" to the ERP's compact "20221231".
func (m *Mapper) Date(rec *domain.Record, column string) string {
	raw := rec.Get(column)
	datePart, _, _ := strings.Cut(raw, " ")
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		m.fail(rec, "unexpected format in %s, expected 2022-12-31 18:36:00", column)
		return ""
	}
	return parts[0] + parts[1] + parts[2]
}

// PartnerCode prefixes the tax id to form the ERP business partner code:
// "CL" for customers, "PRV" for suppliers.
func (m *Mapper) PartnerCode(rec *domain.Record, prefix string) string {
	taxID := rec.Get("TaxId")
	if taxID == "" {
		m.fail(rec, "TaxId not recognized: %q", taxID)
		return ""
	}
	return prefix + taxID
}

// ItemCode returns the product code, erroring on blanks.
func (m *Mapper) ItemCode(rec *domain.Record) string {
	code := rec.Get("ProductCode")
	if code == "" {
		m.fail(rec, "ProductCode not recognized: %q", code)
	}
	return code
}

// MemberName returns the beneficiary name, erroring on blanks.
func (m *Mapper) MemberName(rec *domain.Record) string {
	name := rec.Get("MemberName")
	if name == "" {
		m.fail(rec, "MemberName not recognized: %q", name)
	}
	return name
}

// Plan reduces the plan text to the ERP's S/C flag. An absent column is
// fine: not every module carries a plan.
func (m *Mapper) Plan(rec *domain.Record) string {
	plan := strings.ToUpper(rec.Get("Plan"))
	switch {
	case plan == "":
		return ""
	case strings.Contains(plan, "SUBSIDIZED") || strings.Contains(plan, "CAPITATED"):
		return "S"
	case strings.Contains(plan, "CONTRIBUTORY"):
		return "C"
	}
	m.fail(rec, "neither subsidized nor contributory detected in %q", rec.Get("Plan"))
	return ""
}

// Series picks the numbering series from the sub-plan for document types
// with a capitated/event split. A sub-plan naming neither arrangement, or
// an arrangement the document type has no series for, registers an error
// and returns the joker.
func (m *Mapper) Series(rec *domain.Record, series map[Kind]int) int {
	subPlan := strings.ToUpper(rec.Get("SubPlan"))
	var kind Kind
	switch {
	case strings.Contains(subPlan, "CAPITATED"):
		kind = KindCapitated
	case strings.Contains(subPlan, "EVENT"):
		kind = KindEvent
	}
	if s, ok := series[kind]; ok {
		return s
	}
	m.fail(rec, "neither CAPITATED nor EVENT recognized in SubPlan %q", rec.Get("SubPlan"))
	return JokerSeries
}

// Authorization applies the per-module authorization rule.
func (m *Mapper) Authorization(rec *domain.Record, rule AuthRule, eventSeries bool) string {
	switch rule {
	case AuthAlways:
		return strconv.Itoa(m.Int(rec, "AuthorizationNo"))
	case AuthEventOnly:
		if eventSeries {
			return strconv.Itoa(m.Int(rec, "AuthorizationNo"))
		}
	}
	return ""
}

// ContractCode resolves the contract dimension from the sub-plan.
func (m *Mapper) ContractCode(rec *domain.Record) string {
	code, ok := m.Tables.ContractCode(rec.Get("SubPlan"))
	if !ok {
		m.fail(rec, "SubPlan not recognized for contract %q", rec.Get("SubPlan"))
		return ""
	}
	return code
}

// ExpenseAccount resolves the ledger account from a category column.
func (m *Mapper) ExpenseAccount(rec *domain.Record, column, direction string) string {
	account, ok := m.Tables.ExpenseAccount(rec.Get(column), direction)
	if !ok {
		m.fail(rec, "%s not recognized for expense account %q", column, rec.Get(column))
		return ""
	}
	return account
}

// CostingCode resolves the warehouse's accounting dimension from the ERP
// branch view.
func (m *Mapper) CostingCode(ctx context.Context, rec *domain.Record) string {
	code, err := m.Directory.CostingCode(ctx, rec.Get("CostCenter"))
	if err != nil || code == "" {
		m.fail(rec, "CostCenter not recognized %q", rec.Get("CostCenter"))
		return ""
	}
	return code
}

// BinEntry resolves a warehouse column to its ERP bin entry.
func (m *Mapper) BinEntry(ctx context.Context, rec *domain.Record, column string) int {
	entry, err := m.Directory.BinEntry(ctx, rec.Get(column))
	if err != nil {
		m.fail(rec, "no bin entry found for %s %q", column, rec.Get(column))
		return 0
	}
	return entry
}

// LotEntry resolves a lot number to its ERP entry.
func (m *Mapper) LotEntry(ctx context.Context, rec *domain.Record) int {
	entry, err := m.Directory.LotEntry(ctx, rec.Get("Lot"))
	if err != nil {
		m.fail(rec, "no entry found for lot %q", rec.Get("Lot"))
		return 0
	}
	return entry
}

// InvoiceEntry resolves the invoice number on the record to the DocEntry
// the ERP assigned to that invoice.
func (m *Mapper) InvoiceEntry(ctx context.Context, rec *domain.Record) int {
	entry, err := m.Directory.InvoiceEntry(ctx, rec.Get("InvoiceNo"))
	if err != nil {
		m.fail(rec, "no invoice registered with number %q", rec.Get("InvoiceNo"))
		return 0
	}
	return entry
}

// PackagingQuantity divides a unit quantity by the item's packaging
// size. A remainder means the file disagrees with the ERP's packaging
// definition, which is an error on the record.
func (m *Mapper) PackagingQuantity(ctx context.Context, rec *domain.Record, quantity int) int {
	units, err := m.Directory.PackagingUnits(ctx, rec.Get("ProductCode"))
	if err != nil {
		m.fail(rec, "no packaging info found for item %q", rec.Get("ProductCode"))
		return 0
	}
	packs, remainder := quantity/units, quantity%units
	if remainder != 0 {
		m.fail(rec, "item %s quantity %d is inconsistent with packaging size %d", rec.Get("ProductCode"), quantity, units)
		return 0
	}
	return packs
}

// DeliveryFor finds the delivery line previously registered for this
// record's reference and product, used by invoices and credit notes to
// point back at the originating delivery.
func (m *Mapper) DeliveryFor(ctx context.Context, rec *domain.Record, reference string) (erp.Delivery, bool) {
	deliveries, err := m.Directory.Deliveries(ctx, reference)
	if err != nil || len(deliveries) == 0 {
		m.fail(rec, "no deliveries found for reference %s", reference)
		return erp.Delivery{}, false
	}
	for _, d := range deliveries {
		if d.ItemCode == rec.Get("ProductCode") {
			return d, true
		}
	}
	m.fail(rec, "item %s not found in deliveries for reference %s", rec.Get("ProductCode"), reference)
	return erp.Delivery{}, false
}
