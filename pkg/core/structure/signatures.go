// Package structure scans a normalized document for table-like regions:
// header lines, row extents and a coarse region type, using lexical header
// signatures instead of layout geometry.
package structure

import (
	"strings"

	"statement_extraction/pkg/models"
)

// =============================================================================
// LEXICAL SIGNATURES - Declarative keyword sets, loadable from config
// =============================================================================

// SignatureSet holds the keyword vocabulary used to recognize header lines,
// total/summary lines and bond-style regions. Statements come in several
// languages (EN/DE/FR are the common ones for the producing banks), so each
// field carries keywords for all of them.
type SignatureSet struct {
	// Header maps a semantic field to the keywords whose presence in a line
	// marks it as a header column for that field.
	Header map[models.Field][]string `json:"header"`

	// Total marks lines that close a region and carry aggregate values.
	Total []string `json:"total"`

	// Bond marks headers of regions quoting prices as percent-of-par.
	Bond []string `json:"bond"`

	// NonName marks label fragments that must not be mistaken for a security
	// name (reference-number labels and similar).
	NonName []string `json:"nonName"`
}

// DefaultSignatures returns the built-in vocabulary.
func DefaultSignatures() *SignatureSet {
	return &SignatureSet{
		Header: map[models.Field][]string{
			models.FieldName: {
				"description", "designation", "security", "bezeichnung",
				"titel", "libelle", "valeur", "instrument",
			},
			models.FieldCurrency: {
				"currency", "ccy", "whg", "waehrung", "währung", "monnaie", "devise",
			},
			models.FieldQuantity: {
				"quantity", "qty", "nominal", "anzahl", "stück", "stueck",
				"nombre", "quantite", "quantité", "units", "shares",
			},
			models.FieldPrice: {
				"price", "kurs", "cours", "rate", "quote",
			},
			models.FieldMarketValue: {
				"market value", "kurswert", "valuation", "montant", "amount",
				"wert", "value", "marktwert",
			},
		},
		Total: []string{
			"total", "subtotal", "summe", "totale", "zwischensumme",
			"grand total", "portfolio total", "total assets",
		},
		Bond: []string{
			"bond", "bonds", "obligation", "obligationen", "anleihe",
			"anleihen", "nominal", "notes", "fixed income",
		},
		NonName: []string{
			"valorennummer", "valor", "ref", "reference", "isin",
			"telekurs", "sicherheitsnummer", "page", "seite",
		},
	}
}

// matchHeader returns the column hints found on a line, in left-to-right
// order of the matched keywords. A line is a header candidate when it names
// at least two distinct fields.
func (s *SignatureSet) matchHeader(line string) []models.ColumnHint {
	lower := strings.ToLower(line)

	type hit struct {
		offset  int
		field   models.Field
		keyword string
	}
	var hits []hit
	for field, keywords := range s.Header {
		best := -1
		bestKw := ""
		for _, kw := range keywords {
			if idx := strings.Index(lower, kw); idx >= 0 {
				// Longest keyword wins for a field ("market value" over "value").
				if best == -1 || len(kw) > len(bestKw) {
					best, bestKw = idx, kw
				}
			}
		}
		if best >= 0 {
			hits = append(hits, hit{offset: best, field: field, keyword: bestKw})
		}
	}
	if len(hits) < 2 {
		return nil
	}

	// Sort by text offset to record left-to-right column order.
	for i := 0; i < len(hits)-1; i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].offset < hits[i].offset {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}

	hints := make([]models.ColumnHint, len(hits))
	for i, h := range hits {
		hints[i] = models.ColumnHint{Position: i, Field: h.field, Keyword: h.keyword}
	}
	return hints
}

// matchTotal reports whether a line carries a total/summary signature.
func (s *SignatureSet) matchTotal(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range s.Total {
		if strings.HasPrefix(lower, kw) || strings.Contains(lower, " "+kw) {
			return true
		}
	}
	return false
}

// matchBond reports whether a header line suggests par-quoted instruments.
func (s *SignatureSet) matchBond(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range s.Bond {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsNonName reports whether a text fragment matches a known non-name marker.
func (s *SignatureSet) IsNonName(fragment string) bool {
	lower := strings.ToLower(strings.TrimSpace(fragment))
	if lower == "" {
		return true
	}
	for _, kw := range s.NonName {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}
