package models

// =============================================================================
// PIPELINE CONFIGURATION - Loaded once at process start, never mutated
// =============================================================================

// PipelineConfig carries the static knobs shared read-only across workers.
type PipelineConfig struct {
	// ContextWindowRadius is the number of lines gathered on each side of an
	// identifier anchor.
	ContextWindowRadius int `json:"contextWindowRadius" yaml:"contextWindowRadius"`

	// ToleranceBand is the relative deviation below which extracted and
	// expected totals are considered reconciled.
	ToleranceBand float64 `json:"toleranceBand" yaml:"toleranceBand"`

	// ScalingEligibleRange bounds the extracted/expected ratio inside which a
	// blanket proportional correction is allowed. Outside it the run is
	// flagged unreconciled instead of scaled.
	ScalingEligibleRange [2]float64 `json:"scalingEligibleRange" yaml:"scalingEligibleRange"`

	// PlausibleValueRange bounds an individual holding's market value.
	// Values outside are retained but confidence-capped.
	PlausibleValueRange [2]float64 `json:"plausibleValueRange" yaml:"plausibleValueRange"`

	// ExpectedHoldingCount seeds the order-of-magnitude plausibility band
	// derived from ExpectedTotals when available.
	ExpectedHoldingCount int `json:"expectedHoldingCount" yaml:"expectedHoldingCount"`
}

// DefaultConfig returns the recognized option defaults.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		ContextWindowRadius:  5,
		ToleranceBand:        0.02,
		ScalingEligibleRange: [2]float64{0.3, 2.0},
		PlausibleValueRange:  [2]float64{1, 1e9},
		ExpectedHoldingCount: 20,
	}
}

// Normalized fills zero-valued knobs with defaults so a partially specified
// config (e.g., from YAML) behaves predictably.
func (c PipelineConfig) Normalized() PipelineConfig {
	def := DefaultConfig()
	if c.ContextWindowRadius <= 0 {
		c.ContextWindowRadius = def.ContextWindowRadius
	}
	if c.ToleranceBand <= 0 {
		c.ToleranceBand = def.ToleranceBand
	}
	if c.ScalingEligibleRange[0] <= 0 || c.ScalingEligibleRange[1] <= c.ScalingEligibleRange[0] {
		c.ScalingEligibleRange = def.ScalingEligibleRange
	}
	if c.PlausibleValueRange[1] <= c.PlausibleValueRange[0] {
		c.PlausibleValueRange = def.PlausibleValueRange
	}
	if c.ExpectedHoldingCount <= 0 {
		c.ExpectedHoldingCount = def.ExpectedHoldingCount
	}
	return c
}

// PlausibleBandFor derives the order-of-magnitude per-holding band from the
// expected portfolio total, when one is available; otherwise it returns the
// configured static range.
func (c PipelineConfig) PlausibleBandFor(expected *ExpectedTotals) (min, max float64) {
	if expected == nil || expected.OverallTotal <= 0 {
		return c.PlausibleValueRange[0], c.PlausibleValueRange[1]
	}
	avg := expected.OverallTotal / float64(c.ExpectedHoldingCount)
	// One order of magnitude below the average holding, one above the total.
	min = avg / 100
	max = expected.OverallTotal * 2
	if min < c.PlausibleValueRange[0] {
		min = c.PlausibleValueRange[0]
	}
	if max > c.PlausibleValueRange[1] {
		max = c.PlausibleValueRange[1]
	}
	return min, max
}

// Document is one unit of work for the pipeline: the raw text body plus
// optional reconciliation inputs.
type Document struct {
	Name      string          `json:"name,omitempty"`
	Text      string          `json:"text"`
	Expected  *ExpectedTotals `json:"expected,omitempty"`
	Overrides []OverrideRule  `json:"overrides,omitempty"`
}
