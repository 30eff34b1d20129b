package cleaner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	regionSuffix = regexp.MustCompile(`(?i)\s*\(\s*aus?\s*\)|\s+aus$`)
	titleCaser   = cases.Title(language.English)
)

// normalizeText applies NFKC, trims, and collapses internal whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// splitCamel inserts a space where a lower-case letter runs into an
// upper-case one ("VictorianYMCA" -> "Victorian YMCA").
func splitCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsLower(prev) && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// canonicalProvider is the comparison form of a provider name.
func canonicalProvider(s string) string {
	s = splitCamel(normalizeText(s))
	s = regionSuffix.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// fixCase title-cases names written entirely in one case. Mixed-case names
// are assumed to be deliberate and are kept.
func fixCase(s string) string {
	if s == strings.ToLower(s) || s == strings.ToUpper(s) {
		return titleCaser.String(s)
	}
	return s
}

// nameSimilarity computes Jaccard similarity between the word sets of a and b.
func nameSimilarity(a, b string) float64 {
	wordsA := wordSet(strings.ToLower(a))
	wordsB := wordSet(strings.ToLower(b))

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA)
	for w := range wordsB {
		if !wordsA[w] {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
