package score

import (
	"math"
	"testing"

	"statement_extraction/pkg/models"
)

func approx(t *testing.T, what string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestScoreColumnHintCorroborated(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	v := 199080.0
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldIdentifier, Raw: "XS2530201644", Text: "XS2530201644",
				Provenance: models.Provenance{Rule: "isin-match", Source: models.SourceExtracted}},
			{Field: models.FieldMarketValue, Raw: "199080", Value: &v, Corroborated: true,
				Provenance: models.Provenance{Rule: "column-hint", Source: models.SourceExtracted}},
		},
	}
	record, unres := s.Resolve(anchor, nil)
	if len(unres) != 0 {
		t.Fatalf("unexpected unresolved: %v", unres)
	}
	approx(t, "identifier confidence", record.FieldConfidences[models.FieldIdentifier], 1.0)
	// base 0.5 + corroboration 0.15 + column hint 0.15 + in-range 0.10
	approx(t, "marketValue confidence", record.FieldConfidences[models.FieldMarketValue], 0.9)
	if record.MarketValue == nil || *record.MarketValue != 199080 {
		t.Errorf("marketValue = %v, want 199080", record.MarketValue)
	}
}

func TestScoreTemplateBonus(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	v := 200288.0
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldMarketValue, Raw: "200'288", Value: &v,
				Provenance: models.Provenance{Rule: "template:price-factor-value", Source: models.SourceExtracted}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	// base 0.5 + template 0.20 + in-range 0.10
	approx(t, "marketValue confidence", record.FieldConfidences[models.FieldMarketValue], 0.8)
}

func TestScoreProximityPenalty(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	anchor := &models.Anchor{
		Identifier: "US0378331005",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldCurrency, Raw: "CHF", Text: "CHF", LineDistance: 2,
				Provenance: models.Provenance{Rule: "iso4217-token", Source: models.SourceExtracted}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	// base 0.5 - 2 * 0.06
	approx(t, "currency confidence", record.FieldConfidences[models.FieldCurrency], 0.38)
	if record.Currency != "CHF" {
		t.Errorf("currency = %q", record.Currency)
	}
}

func TestScoreOutOfRangeCapAndReport(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	v := 5e12 // beyond any plausible holding
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldMarketValue, Raw: "5000000000000", Value: &v,
				Provenance: models.Provenance{Rule: "window-scan", Source: models.SourceExtracted}},
		},
	}
	record, unres := s.Resolve(anchor, nil)
	approx(t, "capped confidence", record.FieldConfidences[models.FieldMarketValue], 0.05)
	if record.MarketValue == nil || *record.MarketValue != v {
		t.Error("out-of-range value must be retained, not discarded")
	}
	if len(unres) != 1 || unres[0].Reason != models.ReasonOutOfRangeValue {
		t.Errorf("unresolved = %v, want one out_of_range_value entry", unres)
	}
}

func TestScoreDerivedPenalty(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	v := 199080.0
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldMarketValue, Raw: "99.5400×200000", Value: &v,
				Provenance: models.Provenance{Rule: "derived-percent-of-par", Source: models.SourceDerived}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	// (base 0.5 + in-range 0.10) * 0.8
	approx(t, "derived confidence", record.FieldConfidences[models.FieldMarketValue], 0.48)
	if record.ValueProvenance[models.FieldMarketValue] != models.SourceDerived {
		t.Errorf("provenance = %q, want derived", record.ValueProvenance[models.FieldMarketValue])
	}
}

func TestScoreHigherConfidenceWinsField(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	weak, strong := 123456.0, 199080.0
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldMarketValue, Raw: "123456", Value: &weak,
				Provenance: models.Provenance{Rule: "window-scan", Source: models.SourceExtracted}},
			{Field: models.FieldMarketValue, Raw: "199080", Value: &strong, Corroborated: true,
				Provenance: models.Provenance{Rule: "column-hint", Source: models.SourceExtracted}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	if record.MarketValue == nil || *record.MarketValue != 199080 {
		t.Errorf("marketValue = %v, want the column-hinted 199080", record.MarketValue)
	}
}

func TestScoreRightmostPriorSeparatesSameLineIntegers(t *testing.T) {
	// Two bare grouped integers on the anchor line, each dual-emitted as
	// quantity and marketValue. The rightmost prior must put the right token
	// in the right field instead of letting stable order decide both.
	s := NewScorer(models.DefaultConfig())
	qty, mv := 200000.0, 199080.0
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldQuantity, Raw: "200000", Value: &qty,
				Provenance: models.Provenance{Line: 3, Rule: "shape-heuristic-ambiguous", Source: models.SourceExtracted}},
			{Field: models.FieldMarketValue, Raw: "200000", Value: &qty,
				Provenance: models.Provenance{Line: 3, Rule: "shape-heuristic-ambiguous", Source: models.SourceExtracted}},
			{Field: models.FieldQuantity, Raw: "199080", Value: &mv,
				Provenance: models.Provenance{Line: 3, Rule: "shape-heuristic-ambiguous", Source: models.SourceExtracted}},
			{Field: models.FieldMarketValue, Raw: "199080", Value: &mv,
				Provenance: models.Provenance{Line: 3, Rule: "shape-heuristic-rightmost", Source: models.SourceExtracted}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	if record.MarketValue == nil || *record.MarketValue != 199080 {
		t.Errorf("marketValue = %v, want the rightmost 199080", record.MarketValue)
	}
	if record.Quantity == nil || *record.Quantity != 200000 {
		t.Errorf("quantity = %v, want the leftmost 200000", record.Quantity)
	}
}

func TestScoreBondRegionSetsAssetClass(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	anchor := &models.Anchor{
		Identifier: "XS2530201644",
		Region:     &models.TableRegion{BondHint: true},
	}
	record, _ := s.Resolve(anchor, nil)
	if record.AssetClass != "bonds" {
		t.Errorf("asset class = %q, want bonds", record.AssetClass)
	}
}

func TestOverallConfidenceStableAcrossRuns(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	build := func() *models.Anchor {
		qty, price, mv := 200000.0, 99.54, 199080.0
		return &models.Anchor{
			Identifier: "XS2530201644",
			Candidates: []models.FieldCandidate{
				{Field: models.FieldIdentifier, Raw: "XS2530201644", Text: "XS2530201644",
					Provenance: models.Provenance{Rule: "isin-match", Source: models.SourceExtracted}},
				{Field: models.FieldName, Raw: "TORONTO DOMINION", Text: "TORONTO DOMINION",
					Provenance: models.Provenance{Rule: "preceding-segment", Source: models.SourceExtracted}},
				{Field: models.FieldCurrency, Raw: "CHF", Text: "CHF",
					Provenance: models.Provenance{Rule: "iso4217-token", Source: models.SourceExtracted}},
				{Field: models.FieldQuantity, Raw: "200000", Value: &qty,
					Provenance: models.Provenance{Rule: "column-hint", Source: models.SourceExtracted}},
				{Field: models.FieldPrice, Raw: "99.5400", Value: &price,
					Provenance: models.Provenance{Rule: "column-hint", Source: models.SourceExtracted}},
				{Field: models.FieldMarketValue, Raw: "199080", Value: &mv,
					Provenance: models.Provenance{Rule: "column-hint", Source: models.SourceExtracted}},
			},
		}
	}

	first, _ := s.Resolve(build(), nil)
	// Float accumulation order must not depend on map iteration: the overall
	// confidence has to come out bit-identical on every resolution.
	for i := 0; i < 50; i++ {
		record, _ := s.Resolve(build(), nil)
		if record.Confidence != first.Confidence {
			t.Fatalf("run %d: confidence %v differs from %v", i, record.Confidence, first.Confidence)
		}
	}
}

func TestOverallConfidenceWeights(t *testing.T) {
	s := NewScorer(models.DefaultConfig())
	anchor := &models.Anchor{
		Identifier: "US0378331005",
		Candidates: []models.FieldCandidate{
			{Field: models.FieldIdentifier, Raw: "US0378331005", Text: "US0378331005",
				Provenance: models.Provenance{Rule: "isin-match", Source: models.SourceExtracted}},
		},
	}
	record, _ := s.Resolve(anchor, nil)
	// Identifier weight 0.30 at confidence 1.0; every other field absent
	// contributes zero over the full weight mass.
	approx(t, "overall confidence", record.Confidence, 0.30)
}
