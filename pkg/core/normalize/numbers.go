// Package normalize cleans the raw text layer of a statement: line endings,
// whitespace, locale numeric formats and inline currency tagging.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// LOCALE NUMERAL CANONICALIZATION
// =============================================================================
//
// Scanned bank statements mix three grouping conventions:
//
//	Swiss:       1'234'567.89
//	Anglo:       1,234,567.89
//	Continental: 1.234.567,89
//
// The canonical form is grouping-free with '.' as the decimal marker:
// "1234567.89". A run that carries more than one decimal marker (a fused
// print of several values) is NOT a locale numeral and is left untouched for
// the NumericDisambiguator.

// numeralPattern matches a single locale numeral token, optionally signed,
// optionally suffixed with '%'.
var numeralPattern = regexp.MustCompile(`^[+-]?\d{1,3}(?:[',.\x{2019} ]\d{3})*(?:[.,]\d+)?%?$`)

// plainNumberPattern matches an already-canonical digit run.
var plainNumberPattern = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?%?$`)

// CanonicalizeNumber converts a locale numeral token into its canonical
// grouping-free representation. The second return is false when the token is
// not a recognizable single numeral (fused runs, free text, identifiers).
//
//	"1'234'567.89" → "1234567.89"
//	"1.234.567,89" → "1234567.89"
//	"200'000"      → "200000"
//	"99,5400"      → "99.5400"
//	"100.200099.6285200'288" → untouched (fused run)
func CanonicalizeNumber(token string) (string, bool) {
	if token == "" {
		return token, false
	}
	if plainNumberPattern.MatchString(token) {
		return strings.TrimSuffix(token, "%"), true
	}
	if !numeralPattern.MatchString(token) {
		return token, false
	}

	t := strings.TrimSuffix(token, "%")
	sign := ""
	if t[0] == '+' || t[0] == '-' {
		if t[0] == '-' {
			sign = "-"
		}
		t = t[1:]
	}

	// Locate the decimal marker: the last separator whose trailing digit
	// group is not exactly three digits is decimal; when every group has
	// three digits, a trailing ',' or '.' group is decimal only if it is the
	// sole separator of its kind and a different grouping mark precedes it.
	seps := []int{}
	for i, r := range t {
		switch r {
		case '\'', '’', ' ', ',', '.':
			seps = append(seps, i)
		}
	}
	if len(seps) == 0 {
		return sign + t, true
	}

	last := seps[len(seps)-1]
	tail := t[last+1:]
	decimal := ""
	intPart := t

	lastMark := t[last]
	isGroupingMark := func(b byte) bool { return b == '\'' || b == ' ' }
	switch {
	case len(tail) != 3:
		// Mixed group length: the last separator is the decimal marker.
		decimal = tail
		intPart = t[:last]
	case lastMark == ',' || lastMark == '.':
		// All groups of three: decide by the preceding separators.
		if len(seps) > 1 && t[seps[0]] != lastMark {
			// "1'234.567" or "1.234,567": grouping mark differs → decimal.
			decimal = tail
			intPart = t[:last]
		} else if len(seps) == 1 && lastMark == ',' {
			// A lone ",ddd" on statement text is overwhelmingly a decimal
			// in continental formats only when preceded by a grouping run;
			// a bare "1,234" is grouping. Keep it as grouping.
			decimal = ""
		}
	case isGroupingMark(lastMark):
		// Apostrophe/space never marks decimals.
		decimal = ""
	}

	strip := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		return b.String()
	}

	out := sign + strip(intPart)
	if decimal != "" {
		out += "." + decimal
	}
	return out, true
}

// ParseAmount parses a canonical (or canonicalizable) numeral into a float.
func ParseAmount(token string) (float64, bool) {
	canon, ok := CanonicalizeNumber(token)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(canon, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsFusedRun reports whether a token looks like several numerals printed
// adjacently and fused by text extraction: a digit-heavy token with more than
// one decimal-style marker, or grouping and decimals interleaved in a way no
// single locale produces.
func IsFusedRun(token string) bool {
	if numeralPattern.MatchString(token) || plainNumberPattern.MatchString(token) {
		return false
	}
	digits, dots := 0, 0
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',':
			dots++
		case r == '\'' || r == '’' || r == '%':
			// grouping / percent marks are fine
		default:
			return false
		}
	}
	return digits >= 6 && dots >= 1
}
