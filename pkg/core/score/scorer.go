// Package score selects the winning candidate per semantic field for each
// anchor and aggregates field confidences into an overall holding confidence.
package score

import (
	"strings"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/disambig"
)

// =============================================================================
// SCORING MODEL
// =============================================================================
//
// Every candidate starts from a base score and is adjusted by:
//   proximity      - penalty proportional to line distance from the anchor
//   corroboration  - bonus when a currency token shares the line
//   template/hint  - bonus for exact template matches and header column hints
//   range          - bonus inside the plausible band; cap near zero outside
//   derivation     - multiplicative penalty for derived (not extracted) values

const (
	baseScore          = 0.5
	proximityPenalty   = 0.06 // per line of distance
	corroborationBonus = 0.15
	templateBonus      = 0.20
	columnHintBonus    = 0.15
	rightmostBonus     = 0.05 // positional prior: market value prints rightmost
	rangeBonus         = 0.10
	outOfRangeCap      = 0.05
	derivedFactor      = 0.80
)

// Field weights for the overall confidence. Market value and identifier
// dominate; absent fields contribute zero. The slice fixes the accumulation
// order: float addition is not associative, and map iteration order would
// leak into the output bytes.
var scoredFields = []models.Field{
	models.FieldIdentifier,
	models.FieldMarketValue,
	models.FieldPrice,
	models.FieldQuantity,
	models.FieldCurrency,
	models.FieldName,
}

var fieldWeights = map[models.Field]float64{
	models.FieldIdentifier:  0.30,
	models.FieldMarketValue: 0.35,
	models.FieldPrice:       0.125,
	models.FieldQuantity:    0.125,
	models.FieldCurrency:    0.05,
	models.FieldName:        0.05,
}

// Scorer resolves anchors into holding records.
type Scorer struct {
	cfg models.PipelineConfig
}

// NewScorer creates a scorer.
func NewScorer(cfg models.PipelineConfig) *Scorer {
	return &Scorer{cfg: cfg.Normalized()}
}

// Resolve scores all candidates of one anchor, picks the winner per field and
// builds the holding record. Out-of-range market values are kept (capped, not
// discarded) and reported.
func (s *Scorer) Resolve(anchor *models.Anchor, expected *models.ExpectedTotals) (models.HoldingRecord, []models.UnresolvedEntry) {
	minV, maxV := s.cfg.PlausibleBandFor(expected)

	winners := map[models.Field]*models.FieldCandidate{}
	for i := range anchor.Candidates {
		c := &anchor.Candidates[i]
		if c.Field == models.FieldUnassigned || c.Field == models.FieldFactor {
			continue
		}
		c.Confidence = s.scoreCandidate(c, minV, maxV)
		if better(c, winners[c.Field]) {
			winners[c.Field] = c
		}
	}

	record := models.HoldingRecord{
		Identifier:       anchor.Identifier,
		AnchorLine:       anchor.Line,
		FieldConfidences: map[models.Field]float64{},
		ValueProvenance:  map[models.Field]string{},
	}

	var unresolved []models.UnresolvedEntry
	for field, w := range winners {
		record.FieldConfidences[field] = w.Confidence
		record.ValueProvenance[field] = w.Provenance.Source
		switch field {
		case models.FieldName:
			record.Name = w.Text
		case models.FieldCurrency:
			record.Currency = w.Text
		case models.FieldQuantity:
			record.Quantity = w.Value
		case models.FieldPrice:
			record.Price = w.Value
		case models.FieldMarketValue:
			record.MarketValue = w.Value
			if w.OutOfRange {
				unresolved = append(unresolved, models.UnresolvedEntry{
					Identifier: anchor.Identifier,
					Reason:     models.ReasonOutOfRangeValue,
				})
			}
		}
	}
	if anchor.Region != nil && anchor.Region.BondHint {
		record.AssetClass = "bonds"
	}

	record.Confidence = overallConfidence(record.FieldConfidences)
	return record, unresolved
}

// scoreCandidate computes one candidate's confidence in [0,1].
func (s *Scorer) scoreCandidate(c *models.FieldCandidate, minV, maxV float64) float64 {
	if c.Field == models.FieldIdentifier {
		// Checksum-validated; full confidence by construction.
		return 1.0
	}

	score := baseScore - float64(c.LineDistance)*proximityPenalty
	if c.Corroborated {
		score += corroborationBonus
	}
	switch {
	case strings.HasPrefix(c.Provenance.Rule, disambig.TemplateRulePrefix):
		score += templateBonus
	case c.Provenance.Rule == "column-hint":
		score += columnHintBonus
	case c.Provenance.Rule == "shape-heuristic-rightmost":
		score += rightmostBonus
	}

	if c.Field == models.FieldMarketValue && c.Value != nil {
		if *c.Value >= minV && *c.Value <= maxV {
			score += rangeBonus
		} else {
			c.OutOfRange = true
			if score > outOfRangeCap {
				score = outOfRangeCap
			}
		}
	}

	if c.Provenance.Source == models.SourceDerived {
		score *= derivedFactor
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// better compares two candidates for the same field: higher score wins, ties
// break toward the smaller line distance, then stable order.
func better(c, incumbent *models.FieldCandidate) bool {
	if incumbent == nil {
		return true
	}
	if c.Confidence != incumbent.Confidence {
		return c.Confidence > incumbent.Confidence
	}
	return c.LineDistance < incumbent.LineDistance
}

// overallConfidence is the weighted mean of field confidences over the full
// weight mass; missing fields contribute zero. Accumulation follows the
// scoredFields order so identical input sums to the identical float.
func overallConfidence(fields map[models.Field]float64) float64 {
	sum, mass := 0.0, 0.0
	for _, field := range scoredFields {
		w := fieldWeights[field]
		mass += w
		if conf, ok := fields[field]; ok {
			sum += w * conf
		}
	}
	if mass == 0 {
		return 0
	}
	return sum / mass
}
