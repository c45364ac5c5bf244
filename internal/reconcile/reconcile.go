// Package reconcile compares a locally built line-item list against the
// authoritative elementary movements the ERP reports for the same
// document reference, and rebuilds the local list to match the ERP's
// actual stock allocation when they disagree. All functions are pure.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Consistent reports whether the local line items and the authoritative
// movements agree: per product code, the summed quantities must be equal
// for every product present in either list.
func Consistent(local []domain.LineItem, movements []domain.Movement) bool {
	localTotals := make(map[string]int, len(local))
	for _, line := range local {
		localTotals[line.ItemCode] += line.Quantity
	}
	authTotals := make(map[string]int, len(movements))
	for _, mv := range movements {
		authTotals[mv.ItemCode] += mv.Quantity
	}
	if len(localTotals) != len(authTotals) {
		return false
	}
	for code, total := range localTotals {
		if authTotals[code] != total {
			return false
		}
	}
	return true
}

// Rebuild replaces the local line items with one line item per
// authoritative line number: movements sharing a line number merge into
// one item, quantities summed and each movement's lot collected into the
// allocation list. Price, account and warehouse metadata are copied from
// the first local line item for the product; within one document these
// do not vary per line.
func Rebuild(local []domain.LineItem, movements []domain.Movement) []domain.LineItem {
	templates := make(map[string]domain.LineItem, len(local))
	for _, line := range local {
		if _, ok := templates[line.ItemCode]; !ok {
			templates[line.ItemCode] = line
		}
	}

	byLine := make(map[int]*domain.LineItem)
	var order []int
	for _, mv := range movements {
		item, ok := byLine[mv.LineNum]
		if !ok {
			tpl := templates[mv.ItemCode]
			tpl.LineNum = mv.LineNum
			tpl.ItemCode = mv.ItemCode
			tpl.Quantity = 0
			tpl.Batches = nil
			byLine[mv.LineNum] = &tpl
			item = &tpl
			order = append(order, mv.LineNum)
		}
		item.Quantity += mv.Quantity
		item.Batches = append(item.Batches, domain.BatchAllocation{
			BatchNumber: mv.Lot,
			Quantity:    mv.Quantity,
		})
	}

	sort.Ints(order)
	out := make([]domain.LineItem, 0, len(order))
	for _, num := range order {
		item := *byLine[num]
		rebindBins(&item)
		out = append(out, item)
	}
	return out
}

// rebindBins re-derives a rebuilt transfer line's origin/destination bin
// pair: each produced line gets its own copy of the pair, with the bin
// quantities following the line quantity and the base line numbers
// following the line's own number. Lines without bins are untouched.
func rebindBins(item *domain.LineItem) {
	if len(item.BinAllocations) == 0 {
		return
	}
	bins := make([]domain.BinAllocation, len(item.BinAllocations))
	copy(bins, item.BinAllocations)
	for i := range bins {
		bins[i].Quantity = item.Quantity
		bins[i].BaseLineNumber = item.LineNum
		bins[i].SerialBaseLine = item.LineNum
	}
	item.BinAllocations = bins
}

// SplitAllocations walks the authoritative movements and splits the
// locally declared lots to match them: each movement becomes an entry
// carrying the authoritative line number, quantity and lot, decrementing
// the remainder still owed by the product's local declaration. The
// produced entries conserve the locally declared total per product code;
// a movement list that over- or under-allocates any product is an error.
func SplitAllocations(local []domain.LineItem, movements []domain.Movement) ([]domain.LineItem, error) {
	remaining := make(map[string]int, len(local))
	templates := make(map[string]domain.LineItem, len(local))
	for _, line := range local {
		remaining[line.ItemCode] += line.Quantity
		if _, ok := templates[line.ItemCode]; !ok {
			templates[line.ItemCode] = line
		}
	}

	out := make([]domain.LineItem, 0, len(movements))
	for _, mv := range movements {
		if _, ok := templates[mv.ItemCode]; !ok {
			return nil, fmt.Errorf("movement for undeclared item %s", mv.ItemCode)
		}
		if remaining[mv.ItemCode] < mv.Quantity {
			return nil, fmt.Errorf("item %s: movements exceed the declared quantity by %d",
				mv.ItemCode, mv.Quantity-remaining[mv.ItemCode])
		}
		remaining[mv.ItemCode] -= mv.Quantity

		entry := templates[mv.ItemCode]
		entry.LineNum = mv.LineNum
		entry.Quantity = mv.Quantity
		entry.Batches = []domain.BatchAllocation{
			{BatchNumber: mv.Lot, Quantity: mv.Quantity},
		}
		rebindBins(&entry)
		out = append(out, entry)
	}

	for code, left := range remaining {
		if left != 0 {
			return nil, fmt.Errorf("item %s: %d declared units not covered by any movement", code, left)
		}
	}
	return out, nil
}
