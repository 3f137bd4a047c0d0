package extraction

import (
	"slices"
	"strings"
)

// LabelScheme maps raw classifier labels onto the categories the interpreter
// understands. A label belongs to a category when it contains any of the
// category's patterns, compared case-insensitively. One label may belong to
// several categories (a grand-total label is also a price label by default).
type LabelScheme struct {
	Name       []string
	Count      []string
	Price      []string
	GrandTotal []string
	Tax        []string
}

// CORDLabels is the label vocabulary of LayoutLM models fine-tuned on CORD receipts.
func CORDLabels() LabelScheme {
	return LabelScheme{
		Name:       []string{"MENU.NM"},
		Count:      []string{"MENU.CNT"},
		Price:      []string{"PRICE"},
		GrandTotal: []string{"TOTAL.TOTAL_PRICE"},
		Tax:        []string{"SUB_TOTAL.TAX_PRICE"},
	}
}

func (s LabelScheme) IsName(label string) bool       { return matchLabel(label, s.Name) }
func (s LabelScheme) IsCount(label string) bool      { return matchLabel(label, s.Count) }
func (s LabelScheme) IsPrice(label string) bool      { return matchLabel(label, s.Price) }
func (s LabelScheme) IsGrandTotal(label string) bool { return matchLabel(label, s.GrandTotal) }
func (s LabelScheme) IsTax(label string) bool        { return matchLabel(label, s.Tax) }

func matchLabel(label string, patterns []string) bool {
	label = strings.ToUpper(label)
	for _, p := range patterns {
		if p != "" && strings.Contains(label, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// Config holds the empirically tuned thresholds of the extraction pipeline.
// Horizontal positions are in normalized 0-1000 units.
type Config struct {
	// RowThreshold is the y-center gap that starts a new row.
	RowThreshold float64
	// SerialMaxX is the left margin inside which bare integers are row indexes.
	SerialMaxX int
	// QuantityMinX and QuantityMaxX bound the band (exclusive) where an
	// unlabelled integer is read as a quantity.
	QuantityMinX int
	QuantityMaxX int
	// MaxQuantity rejects quantity candidates at or above this value.
	MaxQuantity float64
	// TaxGapRatio caps an inferred tax at this fraction of the subtotal.
	TaxGapRatio float64
	// HeaderKeywords mark column-title rows, matched case-sensitively.
	HeaderKeywords []string
	// CategoryTotalMarker marks summary rows whose largest price is the total.
	CategoryTotalMarker string
	Labels              LabelScheme
}

// DefaultConfig returns thresholds tuned for CORD-style receipts.
func DefaultConfig() Config {
	return Config{
		RowThreshold:        DefaultRowThreshold,
		SerialMaxX:          50,
		QuantityMinX:        300,
		QuantityMaxX:        800,
		MaxQuantity:         1000,
		TaxGapRatio:         0.4,
		HeaderKeywords:      []string{"Description", "Date", "Rate"},
		CategoryTotalMarker: "Category Total",
		Labels:              CORDLabels(),
	}
}

// Strategy resolves a row's competing candidates. Both functions are only
// called with at least one candidate.
type Strategy struct {
	Quantity func(candidates []float64) float64
	Price    func(candidates []float64) float64
}

// DefaultStrategy reads the last quantity and the largest price, matching the
// usual rate-then-amount column order.
func DefaultStrategy() Strategy {
	return Strategy{
		Quantity: LastQuantity,
		Price:    MaxPrice,
	}
}

// LastQuantity picks the right-most quantity candidate.
func LastQuantity(candidates []float64) float64 {
	return candidates[len(candidates)-1]
}

// MaxPrice picks the largest price candidate.
func MaxPrice(candidates []float64) float64 {
	return slices.Max(candidates)
}
