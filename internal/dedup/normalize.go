// Package dedup groups business records that represent the same real
// company and resolves each group to a single survivor.
package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing legal-entity tokens stripped from names
// before exact-match comparison.
var legalSuffixes = map[string]bool{
	"asa":  true,
	"as":   true,
	"ab":   true,
	"ag":   true,
	"inc":  true,
	"ltd":  true,
	"gmbh": true,
	"plc":  true,
	"corp": true,
	"group": true,
}

// foldDiacritics strips combining marks so accented variants of the
// same name compare equal ("Müller" and "Muller").
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDomain lowercases a raw domain or URL and strips the scheme,
// a leading www., and any path. Returns "" when nothing usable remains.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return ""
	}
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// normalizeName lowercases and diacritic-folds a legal name. This is the
// pre-suffix-stripped form used for token comparison.
func normalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	folded, _, err := transform.String(foldDiacritics, lower)
	if err != nil {
		// Unparseable input is treated as having no normalizable value.
		return lower
	}
	return folded
}

// BareName reduces a legal name to its exact-match key: lowercased,
// diacritic-folded, trailing legal suffix dropped, all non-alphanumeric
// characters removed.
func BareName(name string) string {
	tokens := strings.Fields(normalizeName(name))
	if len(tokens) > 1 {
		last := stripNonAlnum(tokens[len(tokens)-1])
		if legalSuffixes[last] {
			tokens = tokens[:len(tokens)-1]
		}
	}
	return stripNonAlnum(strings.Join(tokens, ""))
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nameTokens returns the whitespace-split token set of the normalized
// (pre-suffix-stripped) name.
func nameTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(normalizeName(name)) {
		tokens[t] = true
	}
	return tokens
}

// jaccard computes token-set similarity in [0,1]. Two empty sets have
// similarity 0, never 1: no evidence is not a match.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// dotTruncated returns the lowercased name truncated at its first
// literal dot, and whether the name contained one. Catches mis-scraped
// names like "bmw.de" vs "BMW".
func dotTruncated(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(lower, "."); i >= 0 {
		return lower[:i], true
	}
	return lower, false
}
