package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	integerToken = regexp.MustCompile(`^\d+$`)
	numericToken = regexp.MustCompile(`^[\d.,]+$`)
	priceToken   = regexp.MustCompile(`^\d+[.,]\d{2}$`)
)

// RowReading is everything the interpreter found in one row.
type RowReading struct {
	// Header is set for column-title rows, which contribute nothing else.
	Header bool
	// Item is nil unless the row had both a name and a price.
	Item *LineItem
	// Totals are the amounts of grand-total labelled tokens.
	Totals []float64
	// Taxes are the amounts of tax labelled tokens.
	Taxes []float64
	// CategoryTotal is set when the row carries the category-total marker.
	CategoryTotal *float64
}

// Interpreter assigns semantic roles to the tokens of a row. It holds no
// mutable state and is safe for concurrent use.
type Interpreter struct {
	cfg      Config
	strategy Strategy
}

// NewInterpreter creates an Interpreter with the default strategy.
func NewInterpreter(cfg Config) *Interpreter {
	return NewInterpreterWithStrategy(cfg, DefaultStrategy())
}

// NewInterpreterWithStrategy creates an Interpreter with a custom tie-break strategy.
// Nil strategy functions fall back to the defaults.
func NewInterpreterWithStrategy(cfg Config, strategy Strategy) *Interpreter {
	def := DefaultStrategy()
	if strategy.Quantity == nil {
		strategy.Quantity = def.Quantity
	}
	if strategy.Price == nil {
		strategy.Price = def.Price
	}
	return &Interpreter{cfg: cfg, strategy: strategy}
}

// Interpret reads one row.
func (in *Interpreter) Interpret(row Row) RowReading {
	var reading RowReading

	rowText := row.Text()
	if in.isHeader(rowText) {
		reading.Header = true
		return reading
	}

	labels := in.cfg.Labels
	var (
		names      []string
		quantities []float64
		prices     []float64
	)

	for _, tok := range row {
		text, label, x0 := tok.Text, tok.Label, tok.Box[0]

		if x0 < in.cfg.SerialMaxX && integerToken.MatchString(text) {
			continue
		}

		if labels.IsName(label) || (!numericToken.MatchString(text) && !labels.IsPrice(label)) {
			if !strings.ContainsAny(text, "/:") {
				names = append(names, text)
			}
		}

		inBand := in.cfg.QuantityMinX < x0 && x0 < in.cfg.QuantityMaxX
		if labels.IsCount(label) || (integerToken.MatchString(text) && inBand) {
			if q, ok := in.quantity(text); ok {
				quantities = append(quantities, q)
			}
		}

		if labels.IsPrice(label) || priceToken.MatchString(text) {
			if p := SanitizePrice(text); p > 0 {
				prices = append(prices, p)
			}
		}

		if labels.IsGrandTotal(label) {
			if p := SanitizePrice(text); p > 0 {
				reading.Totals = append(reading.Totals, p)
			}
		}
		if labels.IsTax(label) {
			if p := SanitizePrice(text); p > 0 {
				reading.Taxes = append(reading.Taxes, p)
			}
		}
	}

	if len(names) > 0 && len(prices) > 0 {
		qty := 1.0
		if len(quantities) > 0 {
			qty = in.strategy.Quantity(quantities)
		}
		reading.Item = &LineItem{
			Name:     joinName(names),
			Quantity: qty,
			Price:    in.strategy.Price(prices),
		}
	}

	if marker := in.cfg.CategoryTotalMarker; marker != "" && len(prices) > 0 && strings.Contains(rowText, marker) {
		total := MaxPrice(prices)
		reading.CategoryTotal = &total
	}

	return reading
}

func (in *Interpreter) isHeader(rowText string) bool {
	for _, kw := range in.cfg.HeaderKeywords {
		if kw != "" && strings.Contains(rowText, kw) {
			return true
		}
	}
	return false
}

// quantity accepts whole numbers below the configured bound.
func (in *Interpreter) quantity(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v != math.Trunc(v) || v >= in.cfg.MaxQuantity {
		return 0, false
	}
	return v, true
}

func joinName(parts []string) string {
	name := joinSpaced(parts)
	name = strings.ReplaceAll(name, " .", ".")
	return strings.TrimSpace(name)
}
