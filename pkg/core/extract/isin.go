// Package extract locates identifier anchors inside holdings regions and
// gathers raw field candidates from a bounded context window around each.
package extract

import (
	"regexp"
	"strconv"
)

// =============================================================================
// ISIN VALIDATION - Shape plus Luhn check digit
// =============================================================================

// isinShape is the strict ISIN shape: 2-letter country prefix, 9 alphanumeric
// characters, 1 numeric check digit.
var isinShape = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)

// looseShape catches tokens structurally close to an ISIN (right length,
// letter prefix) that fail the strict shape; they are reported as malformed
// rather than silently ignored.
var looseShape = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{10}\b`)

// ValidISIN reports whether a token passes both the ISIN shape and the Luhn
// check digit computed over its letter-expanded digit string.
func ValidISIN(code string) bool {
	if !isinShape.MatchString(code) || len(code) != 12 {
		return false
	}
	digits := make([]byte, 0, 24)
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c >= 'A' && c <= 'Z':
			digits = append(digits, []byte(strconv.Itoa(int(c-'A')+10))...)
		default:
			return false
		}
	}
	return luhnValid(digits)
}

// luhnValid runs the standard Luhn mod-10 check: from the rightmost digit,
// every second digit (not counting the check digit itself) is doubled.
func luhnValid(digits []byte) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
