package normalize

import (
	"log"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"

	"statement_extraction/pkg/models"
)

// =============================================================================
// NORMALIZER - Raw text -> RawDocument (pure transform, no side effects)
// =============================================================================

// Normalizer cleans a raw extracted text body into an immutable RawDocument.
type Normalizer struct{}

// NewNormalizer creates a new normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

var (
	whitespaceRun = regexp.MustCompile(`[ \t\x{00A0}]+`)

	// currencyToken matches a standalone 3-letter uppercase token; candidates
	// are validated against the ISO 4217 registry before tagging.
	currencyToken = regexp.MustCompile(`\b[A-Z]{3}\b`)

	// identifierShape is the loose ISIN shape used only for the
	// non-financial-input check (strict validation happens downstream).
	identifierShape = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)
)

// Normalize converts raw text into a RawDocument: unified line breaks,
// collapsed whitespace, canonical numerals, tagged currencies. When the text
// contains no numeric and no identifier tokens at all, it returns a document
// with an empty line set and the NonFinancial flag set; the caller decides
// whether to abort.
func (n *Normalizer) Normalize(name, raw string) *models.RawDocument {
	if looksLikeHTML(raw) {
		flattened, err := FlattenHTML(raw)
		if err != nil {
			log.Printf("[Normalizer] HTML flatten failed for %q, treating as plain text: %v", name, err)
		} else {
			raw = flattened
		}
	}

	body := strings.ReplaceAll(raw, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")

	rawLines := strings.Split(body, "\n")
	lines := make([]models.Line, 0, len(rawLines))
	financial := false

	for i, rl := range rawLines {
		collapsed := strings.TrimSpace(whitespaceRun.ReplaceAllString(rl, " "))
		text, numerals := canonicalizeLine(collapsed)
		currencies := tagCurrencies(collapsed)
		if numerals > 0 || identifierShape.MatchString(collapsed) {
			financial = true
		}

		role := models.LineRoleText
		if collapsed == "" {
			role = models.LineRoleBlank
		}
		lines = append(lines, models.Line{
			Index:      i,
			Raw:        rl,
			Text:       text,
			Role:       role,
			Currencies: currencies,
		})
	}

	if !financial {
		log.Printf("[Normalizer] %q: no numeric or identifier tokens found, flagging as non-financial", name)
		return &models.RawDocument{Name: name, NonFinancial: true}
	}

	texts := make([]string, len(lines))
	for i := range lines {
		texts[i] = lines[i].Text
	}
	return &models.RawDocument{
		Name:  name,
		Text:  strings.Join(texts, "\n"),
		Lines: lines,
	}
}

// canonicalizeLine rewrites every recognizable locale numeral token into its
// canonical form and counts how many were found. Fused runs are preserved
// verbatim for the disambiguator.
func canonicalizeLine(line string) (string, int) {
	if line == "" {
		return line, 0
	}
	tokens := strings.Split(line, " ")
	count := 0
	for i, tok := range tokens {
		if IsFusedRun(tok) {
			count++
			continue
		}
		if canon, ok := CanonicalizeNumber(tok); ok {
			tokens[i] = canon
			count++
		}
	}
	return strings.Join(tokens, " "), count
}

// tagCurrencies returns the ISO 4217 codes present on the line, in order of
// first appearance, deduplicated.
func tagCurrencies(line string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range currencyToken.FindAllString(line, -1) {
		if seen[tok] {
			continue
		}
		if money.GetCurrency(tok) == nil {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
