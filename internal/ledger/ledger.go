// Package ledger recomputes product stock quantities from the immutable
// transaction history. The cached Product.Stock field is redundant state;
// this package is the source of truth it must agree with.
package ledger

import (
	"time"

	"github.com/juckphai/salejuck/internal/pos"
)

// Stock computes the current ledger stock for every product referenced in
// the history: stock-in total minus sold total minus stock-out total.
// Accumulation is grouped per product, so the result is independent of
// record order. Products with no history are absent from the map; callers
// treat absence as zero. Negative values are valid output and signal a
// discrepancy; they are never clamped.
func Stock(d *pos.Document) map[int64]float64 {
	return accumulate(d, func(string) bool { return true })
}

// StockAsOf computes ledger stock restricted to events dated at or before
// the cutoff (inclusive point-in-time reconstruction). Records whose dates
// do not parse are excluded from cutoff queries.
func StockAsOf(d *pos.Document, cutoff time.Time) map[int64]float64 {
	return accumulate(d, func(date string) bool {
		t, ok := pos.ParseDate(date)
		return ok && !t.After(cutoff)
	})
}

// StockFor returns the ledger stock for one product, zero when it has no
// history.
func StockFor(d *pos.Document, productID int64) float64 {
	return Stock(d)[productID]
}

func accumulate(d *pos.Document, include func(date string) bool) map[int64]float64 {
	totals := make(map[int64]float64, len(d.Products))

	for i := range d.StockIns {
		si := &d.StockIns[i]
		if include(si.Date) {
			totals[si.ProductID] += si.Quantity
		}
	}
	for i := range d.Sales {
		sale := &d.Sales[i]
		if !include(sale.Date) {
			continue
		}
		for j := range sale.Items {
			item := &sale.Items[j]
			totals[item.ProductID] -= item.Quantity
		}
	}
	for i := range d.StockOuts {
		so := &d.StockOuts[i]
		if include(so.Date) {
			totals[so.ProductID] -= so.Quantity
		}
	}
	return totals
}
