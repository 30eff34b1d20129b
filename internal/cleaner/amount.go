package cleaner

import (
	"regexp"
	"strconv"
	"strings"
)

// parsedAmount is the outcome of reading a raw amount cell.
type parsedAmount struct {
	value    float64
	currency string // code embedded in the text, upper-cased; "" if none
	modified bool
}

var (
	// Longest prefixes first so "US$" is not read as "$".
	currencySymbols = []struct{ symbol, code string }{
		{"US$", "USD"},
		{"AU$", "AUD"},
		{"NZ$", "NZD"},
		{"A$", "AUD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"$", ""},
	}
	currencyCode  = regexp.MustCompile(`(?i)\b([a-z]{3})\b`)
	scaleSuffix   = regexp.MustCompile(`(?i)\s*(million|mil|m|thousand|k)$`)
	numericAmount = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
)

// parseAmount reads amounts such as "$12,345.67", "123 AUD", "1.2m",
// "1.2 million" and "(450.00)". known reports whether a three-letter token
// is a currency code. A negative result is returned as a negative value; the
// caller decides whether that is acceptable. ok is false when the text is
// not a number.
func parseAmount(raw string, known func(string) bool) (parsedAmount, bool) {
	original := strings.TrimSpace(raw)
	s := original
	if s == "" {
		return parsedAmount{}, false
	}

	var out parsedAmount
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}

	for _, m := range currencyCode.FindAllStringSubmatch(s, -1) {
		if known(m[1]) {
			out.currency = strings.ToUpper(m[1])
			s = strings.TrimSpace(strings.Replace(s, m[0], "", 1))
			break
		}
	}
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			if out.currency == "" {
				out.currency = cs.code
			}
			s = strings.TrimSpace(strings.Replace(s, cs.symbol, "", 1))
			break
		}
	}
	// A sign may follow the symbol ("$-12").
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}

	multiplier := 1.0
	if m := scaleSuffix.FindStringSubmatch(s); m != nil {
		switch strings.ToLower(m[1]) {
		case "million", "mil", "m":
			multiplier = 1_000_000
		case "thousand", "k":
			multiplier = 1_000
		}
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	// "1.234.56" keeps only the last dot as the decimal point.
	if strings.Count(s, ".") > 1 {
		i := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:i], ".", "") + s[i:]
	}
	if !numericAmount.MatchString(s) {
		return parsedAmount{}, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return parsedAmount{}, false
	}
	v *= multiplier
	if negative {
		v = -v
	}
	if v == 0 {
		v = 0 // drop the sign of "-0" and "(0)"
	}

	out.value = v
	out.modified = s != original || multiplier != 1
	return out, true
}
