package doctype

import (
	"context"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Warehouse transfers have no numbering series and carry the line items
// in the transfer collection, each with its origin/destination bin pair.
type transfers struct{}

func init() { register(transfers{}) }

func (transfers) Name() string     { return "transfers" }
func (transfers) KeyField() string { return "DocumentNo" }

func (transfers) RequiredHeader() []string {
	return []string{
		"TransferDate", "OriginWarehouse", "DestinationWarehouse",
		"Quantity", "Lot", "ProductCode", "DocumentNo",
	}
}

func (transfers) Endpoint(*domain.Payload) string { return EndpointStockTransfers }

func (s transfers) BuildHeader(ctx context.Context, m *Mapper, rec *domain.Record, key string) *domain.Payload {
	p := &domain.Payload{
		DocDate:       m.Date(rec, "TransferDate"),
		CardCode:      InternalPartnerCode,
		JournalMemo:   m.Comment(rec, ""),
		FromWarehouse: rec.Get("OriginWarehouse"),
		ToWarehouse:   rec.Get("DestinationWarehouse"),
		Reference:     key,
	}
	line := s.BuildLine(ctx, m, rec)
	p.TransferLines = []domain.LineItem{*line}
	return p
}

func (transfers) BuildLine(ctx context.Context, m *Mapper, rec *domain.Record) *domain.LineItem {
	qty := m.Int(rec, "Quantity")
	return &domain.LineItem{
		ItemCode: m.ItemCode(rec),
		Quantity: qty,
		Batches: []domain.BatchAllocation{
			{BatchNumber: rec.Get("Lot"), Quantity: qty},
		},
		BinAllocations: []domain.BinAllocation{
			{
				BinAbsEntry:   m.BinEntry(ctx, rec, "OriginWarehouse"),
				Quantity:      qty,
				BinActionType: domain.BinActionFromWarehouse,
			},
			{
				BinAbsEntry:   m.BinEntry(ctx, rec, "DestinationWarehouse"),
				Quantity:      qty,
				BinActionType: domain.BinActionToWarehouse,
			},
		},
	}
}

func (transfers) Merge(p *domain.Payload, line *domain.LineItem) {
	mergeTransferLines(p, line)
}
