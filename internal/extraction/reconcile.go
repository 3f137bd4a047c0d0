package extraction

import "math"

// Accumulator folds row readings, in row order, into line items and the
// running explicit total and tax.
type Accumulator struct {
	items []LineItem
	total float64
	tax   float64
}

// Add folds one row reading.
func (a *Accumulator) Add(r RowReading) {
	if r.Header {
		return
	}
	for _, t := range r.Totals {
		// Repeated or partial totals on a page: keep the largest.
		a.total = math.Max(a.total, t)
	}
	for _, t := range r.Taxes {
		a.tax += t
	}
	if r.Item != nil {
		a.items = append(a.items, *r.Item)
	}
	if r.CategoryTotal != nil {
		a.total = *r.CategoryTotal
	}
}

// Items returns the line items collected so far.
func (a *Accumulator) Items() []LineItem {
	return a.items
}

// Summary reconciles the collected items against the explicit total and tax.
func (a *Accumulator) Summary(taxGapRatio float64) Summary {
	return Reconcile(a.items, a.total, a.tax, taxGapRatio)
}

// Reconcile produces a consistent summary. The explicit total wins when
// present. With no explicit tax, a total above the subtotal is read as tax
// only when the gap stays below taxGapRatio of the subtotal; larger gaps are
// left unattributed.
func Reconcile(items []LineItem, explicitTotal, explicitTax, taxGapRatio float64) Summary {
	var subtotal float64
	for _, it := range items {
		subtotal += it.Price
	}

	total := subtotal
	if explicitTotal > 0 {
		total = explicitTotal
	}

	tax := explicitTax
	if total > subtotal && tax == 0 {
		if gap := total - subtotal; gap < subtotal*taxGapRatio {
			tax = gap
		}
	}

	return Summary{
		Subtotal:   round2(subtotal),
		Tax:        round2(tax),
		Total:      round2(total),
		IsTaxAdded: tax > 0,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
