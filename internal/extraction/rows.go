package extraction

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// DefaultRowThreshold is the maximum y-center gap, in normalized units, between
// neighbouring tokens of the same row.
const DefaultRowThreshold = 15

// ClusterRows groups tokens into rows ordered top to bottom. A token joins the
// current row when its y-center is within threshold of the last token appended
// to that row. Tokens inside each row are ordered by x0.
func ClusterRows(tokens []Token, threshold float64) []Row {
	if len(tokens) == 0 {
		return nil
	}

	sorted := slices.Clone(tokens)
	slices.SortStableFunc(sorted, func(a, b Token) int {
		return cmp.Compare(a.Box.YCenter(), b.Box.YCenter())
	})

	var rows []Row
	current := Row{sorted[0]}
	for _, tok := range sorted[1:] {
		prev := current[len(current)-1]
		if math.Abs(tok.Box.YCenter()-prev.Box.YCenter()) > threshold {
			rows = append(rows, sortRow(current))
			current = Row{tok}
			continue
		}
		current = append(current, tok)
	}
	rows = append(rows, sortRow(current))

	return rows
}

func sortRow(r Row) Row {
	slices.SortStableFunc(r, func(a, b Token) int {
		return cmp.Compare(a.Box[0], b.Box[0])
	})
	return r
}

func joinSpaced(parts []string) string {
	return strings.Join(parts, " ")
}
