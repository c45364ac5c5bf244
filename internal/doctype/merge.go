package doctype

import "github.com/farmalink/erpbridge/internal/domain"

// mergeDocumentLines folds a new line into DocumentLines. A line for a
// product already on the document adds its quantity and lot allocations
// to the existing line instead of appending a duplicate.
func mergeDocumentLines(p *domain.Payload, line *domain.LineItem) {
	for i := range p.DocumentLines {
		existing := &p.DocumentLines[i]
		if existing.ItemCode != line.ItemCode {
			continue
		}
		existing.Quantity += line.Quantity
		existing.Batches = append(existing.Batches, line.Batches...)
		return
	}
	p.DocumentLines = append(p.DocumentLines, *line)
}

// appendDocumentLine always appends. Invoices keep one line per source
// delivery line, even when the product repeats.
func appendDocumentLine(p *domain.Payload, line *domain.LineItem) {
	p.DocumentLines = append(p.DocumentLines, *line)
}

// mergeTransferLines folds a new line into TransferLines. Transfer lines
// carry an origin/destination bin allocation pair whose quantities and
// base line numbers must stay in step with the owning line.
func mergeTransferLines(p *domain.Payload, line *domain.LineItem) {
	for i := range p.TransferLines {
		existing := &p.TransferLines[i]
		if existing.ItemCode != line.ItemCode {
			continue
		}
		existing.Quantity += line.Quantity
		for j := range existing.BinAllocations {
			existing.BinAllocations[j].Quantity += line.Quantity
		}
		existing.Batches = append(existing.Batches, line.Batches...)
		return
	}
	lineNum := len(p.TransferLines)
	line.LineNum = lineNum
	for j := range line.BinAllocations {
		line.BinAllocations[j].BaseLineNumber = lineNum
		line.BinAllocations[j].SerialBaseLine = lineNum
	}
	p.TransferLines = append(p.TransferLines, *line)
}
