package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.,]`)
	spacedPeriod  = regexp.MustCompile(`\.\s+`)
)

// SanitizePrice turns a numeric-looking OCR token into an amount. It returns
// 0 for anything it cannot parse; callers treat 0 as "no usable price".
func SanitizePrice(text string) float64 {
	clean := nonPriceChars.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = spacedPeriod.ReplaceAllString(clean, ".")

	// OCR sometimes emits several decimal points; the last one is the real one.
	if n := strings.Count(clean, "."); n > 1 {
		clean = strings.Replace(clean, ".", "", n-1)
	}

	amount, err := strconv.ParseFloat(clean, 64)
	if err != nil || amount < 0 {
		return 0
	}
	return amount
}
