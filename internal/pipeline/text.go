package pipeline

import (
	"regexp"
	"strings"
)

// NoPrice is recorded when no price token is present.
const NoPrice = `0 ש"ח`

var (
	priceSuffix = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(?:₪|ש"ח|ש״ח|ש''ח)`)
	pricePrefix = regexp.MustCompile(`₪\s*(\d[\d,]*(?:\.\d+)?)`)
)

// CleanText removes every URL from text and trims the result.
func CleanText(text string) string {
	return strings.TrimSpace(urlPattern.ReplaceAllString(text, ""))
}

// ExtractPrice returns the first shekel amount in text as `<amount> ש"ח`, or NoPrice.
func ExtractPrice(text string) string {
	for _, re := range []*regexp.Regexp{priceSuffix, pricePrefix} {
		if m := re.FindStringSubmatch(text); m != nil {
			amount := strings.ReplaceAll(m[1], ",", "")
			if strings.Trim(amount, "0.") == "" {
				continue
			}
			return amount + ` ש"ח`
		}
	}
	return NoPrice
}
