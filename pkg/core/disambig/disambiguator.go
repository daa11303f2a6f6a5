package disambig

import (
	"log"
	"strings"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/normalize"
)

// =============================================================================
// NUMERIC DISAMBIGUATOR - Fused/unassigned candidates -> labeled candidates
// =============================================================================

// Disambiguator resolves ambiguous numeric candidates on each anchor: fused
// runs are split by the template library, loose numerals get shape-heuristic
// labels, and a missing market value is derived from price and quantity.
type Disambiguator struct {
	templates []Template
	cfg       models.PipelineConfig
}

// NewDisambiguator creates a disambiguator over the given template library
// (nil uses the built-in defaults).
func NewDisambiguator(templates []Template, cfg models.PipelineConfig) *Disambiguator {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Disambiguator{templates: templates, cfg: cfg.Normalized()}
}

// TemplateRulePrefix marks candidate provenance produced by a template match;
// the scorer awards these the template-strength bonus.
const TemplateRulePrefix = "template:"

// Process rewrites the anchor's candidate set in place and returns the
// unresolved entries collected along the way (ambiguous runs that matched no
// template). It never removes information: unsplittable runs stay as
// low-confidence unassigned candidates.
func (d *Disambiguator) Process(anchor *models.Anchor, expected *models.ExpectedTotals) []models.UnresolvedEntry {
	var unresolved []models.UnresolvedEntry
	var out []models.FieldCandidate

	lastBare := lastBareIntegerPerLine(anchor.Candidates)

	for i, c := range anchor.Candidates {
		if c.Provenance.Rule == "fused-run" {
			split, ok := d.splitRun(c, expected)
			if ok {
				out = append(out, split...)
				continue
			}
			unresolved = append(unresolved, models.UnresolvedEntry{
				Identifier: anchor.Identifier,
				Reason:     models.ReasonAmbiguousNumericRun,
			})
			// Retained, unassigned, low confidence (scorer treats
			// valueless unassigned candidates as floor-confidence).
			out = append(out, c)
			continue
		}
		if c.Field == models.FieldUnassigned && c.Value != nil {
			c.Field = shapeLabel(c.Raw, *c.Value)
			if c.Field != models.FieldUnassigned {
				c.Provenance.Rule = "shape-heuristic"
			} else if *c.Value >= 1000 && !strings.Contains(c.Raw, ".") {
				// A bare grouped integer reads as either a quantity or an
				// amount; emit both interpretations and let the scorer's
				// range plausibility decide. Nothing is discarded. Market
				// values print rightmost on these statements, so the last
				// bare integer of a line carries that prior on its amount
				// interpretation.
				for _, f := range []models.Field{models.FieldQuantity, models.FieldMarketValue} {
					v := c
					v.Field = f
					v.Provenance.Rule = "shape-heuristic-ambiguous"
					if f == models.FieldMarketValue && lastBare[c.Provenance.Line] == i {
						v.Provenance.Rule = "shape-heuristic-rightmost"
					}
					out = append(out, v)
				}
				continue
			}
		}
		out = append(out, c)
	}

	out = d.deriveMarketValue(anchor, out)
	anchor.Candidates = out
	return unresolved
}

// lastBareIntegerPerLine maps each line to the index of its final ambiguous
// bare grouped integer, the one positioned where the market value column
// prints.
func lastBareIntegerPerLine(candidates []models.FieldCandidate) map[int]int {
	out := map[int]int{}
	for i, c := range candidates {
		if c.Field != models.FieldUnassigned || c.Value == nil || c.Provenance.Rule == "fused-run" {
			continue
		}
		if shapeLabel(c.Raw, *c.Value) != models.FieldUnassigned {
			continue
		}
		if *c.Value >= 1000 && !strings.Contains(c.Raw, ".") {
			out[c.Provenance.Line] = i
		}
	}
	return out
}

// splitRun tries the template library in priority order. When several
// templates structurally match, the one whose market value lands inside the
// plausible per-holding band wins; with no such match the first match wins.
func (d *Disambiguator) splitRun(c models.FieldCandidate, expected *models.ExpectedTotals) ([]models.FieldCandidate, bool) {
	minV, maxV := d.cfg.PlausibleBandFor(expected)

	type match struct {
		tpl    *Template
		splits []Split
	}
	var matches []match
	for i := range d.templates {
		if splits, ok := d.templates[i].Match(c.Raw); ok {
			matches = append(matches, match{tpl: &d.templates[i], splits: splits})
		}
	}
	if len(matches) == 0 {
		return nil, false
	}

	chosen := matches[0]
	if len(matches) > 1 {
		for _, m := range matches {
			if mv, ok := splitMarketValue(m.splits); ok && mv >= minV && mv <= maxV {
				chosen = m
				break
			}
		}
		log.Printf("[NumericDisambiguator] run %q matched %d templates, using %q",
			c.Raw, len(matches), chosen.tpl.Name)
	}

	out := make([]models.FieldCandidate, 0, len(chosen.splits))
	for _, s := range chosen.splits {
		v, ok := normalize.ParseAmount(s.Raw)
		if !ok {
			continue
		}
		value := v
		out = append(out, models.FieldCandidate{
			Field:        s.Field,
			Raw:          s.Raw,
			Value:        &value,
			Provenance:   models.Provenance{Line: c.Provenance.Line, Rule: TemplateRulePrefix + chosen.tpl.Name, Source: models.SourceExtracted},
			LineDistance: c.LineDistance,
			Corroborated: c.Corroborated,
		})
	}
	return out, true
}

func splitMarketValue(splits []Split) (float64, bool) {
	for _, s := range splits {
		if s.Field == models.FieldMarketValue {
			return normalize.ParseAmount(s.Raw)
		}
	}
	return 0, false
}

// shapeLabel infers a field from the printed shape of a lone numeral:
// four-decimal small values are prices, grouped or large integers are
// quantity/value amounts (left ambiguous), two-decimal amounts are values.
func shapeLabel(raw string, v float64) models.Field {
	switch {
	case strings.Count(raw, ".") == 1 && len(raw)-strings.Index(raw, ".")-1 == 4 && v < 10000:
		return models.FieldPrice
	case strings.Count(raw, ".") == 1 && len(raw)-strings.Index(raw, ".")-1 == 2 && v >= 100:
		return models.FieldMarketValue
	default:
		return models.FieldUnassigned
	}
}

// deriveMarketValue adds a derived market value candidate when price and
// quantity are known but no market value was extracted. Par-quoted regions
// (bond hint, price in percent-of-par range) divide by 100.
func (d *Disambiguator) deriveMarketValue(anchor *models.Anchor, candidates []models.FieldCandidate) []models.FieldCandidate {
	var price, quantity *models.FieldCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.Value == nil {
			continue
		}
		switch c.Field {
		case models.FieldPrice:
			if price == nil {
				price = c
			}
		case models.FieldQuantity:
			if quantity == nil {
				quantity = c
			}
		case models.FieldMarketValue:
			return candidates // already extracted
		}
	}
	if price == nil || quantity == nil {
		return candidates
	}

	derived := *price.Value * *quantity.Value
	rule := "derived-price-times-quantity"
	if anchor.Region != nil && anchor.Region.BondHint && *price.Value > 0 && *price.Value <= 200 {
		derived /= 100
		rule = "derived-percent-of-par"
	}

	dist := price.LineDistance
	if quantity.LineDistance > dist {
		dist = quantity.LineDistance
	}
	log.Printf("[NumericDisambiguator] %s: derived marketValue %.2f (%s)", anchor.Identifier, derived, rule)
	return append(candidates, models.FieldCandidate{
		Field:        models.FieldMarketValue,
		Raw:          price.Raw + "×" + quantity.Raw,
		Value:        &derived,
		Provenance:   models.Provenance{Line: price.Provenance.Line, Rule: rule, Source: models.SourceDerived},
		LineDistance: dist,
		Corroborated: price.Corroborated || quantity.Corroborated,
	})
}
