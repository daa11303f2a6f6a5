// Package reconcile aggregates resolved holdings, compares them against the
// externally supplied expected totals and applies bounded corrections.
package reconcile

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"statement_extraction/pkg/models"
)

// =============================================================================
// RECONCILER - Dedup, aggregate, bounded proportional correction
// =============================================================================

// Reconciler produces the final holdings list and the validation report. It
// never fabricates a holding: it may only merge duplicates, scale values or
// flag the run.
type Reconciler struct {
	cfg models.PipelineConfig
}

// NewReconciler creates a reconciler.
func NewReconciler(cfg models.PipelineConfig) *Reconciler {
	return &Reconciler{cfg: cfg.Normalized()}
}

// Reconcile runs the final stage. priorUnresolved carries the diagnostics
// accumulated by earlier stages; they are folded into the report. The only
// fatal condition is an invalid ExpectedTotals shape.
func (r *Reconciler) Reconcile(
	runID string,
	docName string,
	holdings []models.HoldingRecord,
	expected *models.ExpectedTotals,
	overrides []models.OverrideRule,
	priorUnresolved []models.UnresolvedEntry,
) (*models.Result, error) {
	if expected != nil && expected.OverallTotal <= 0 {
		return nil, fmt.Errorf("invalid expected totals: overallTotal must be positive, got %v", expected.OverallTotal)
	}

	report := models.ValidationReport{
		RunID:              runID,
		Document:           docName,
		CorrectionsApplied: []models.Correction{},
		Unresolved:         append([]models.UnresolvedEntry{}, priorUnresolved...),
	}

	// 1. Deduplicate by identifier, keeping the higher-confidence record.
	final := r.dedupe(holdings, &report)

	// 2. External override rules (identifier -> known value) apply before
	// aggregate comparison; they are explicit corrections, never heuristics.
	r.applyOverrides(final, overrides, &report)

	// 3. Aggregate with exact decimal arithmetic.
	extracted := decimal.Zero
	for i := range final {
		if final[i].MarketValue != nil {
			extracted = extracted.Add(decimal.NewFromFloat(*final[i].MarketValue))
		}
	}
	report.HoldingsCount = len(final)
	report.ExtractedTotal = extracted.Round(2).InexactFloat64()

	// 4. Compare against expected totals, when supplied.
	if expected != nil {
		r.reconcileTotals(final, expected, extracted, &report)
		r.reconcileAssetClasses(final, expected, &report)
	}

	sortUnresolved(report.Unresolved)
	log.Printf("[Reconciler] %q: holdings=%d extracted=%.2f corrections=%d unresolved=%d unreconciled=%v",
		docName, report.HoldingsCount, report.ExtractedTotal,
		len(report.CorrectionsApplied), len(report.Unresolved), report.Unreconciled)

	return &models.Result{Holdings: final, Validation: report}, nil
}

// dedupe merges records sharing an identifier; the higher overall confidence
// survives, the loss is recorded for audit. Order of first appearance is kept.
func (r *Reconciler) dedupe(holdings []models.HoldingRecord, report *models.ValidationReport) []models.HoldingRecord {
	byID := map[string]int{}
	var out []models.HoldingRecord
	for _, h := range holdings {
		idx, seen := byID[h.Identifier]
		if !seen {
			byID[h.Identifier] = len(out)
			out = append(out, h)
			continue
		}
		report.Unresolved = append(report.Unresolved, models.UnresolvedEntry{
			Identifier: h.Identifier,
			Reason:     models.ReasonDuplicateIdentifier,
		})
		if h.Confidence > out[idx].Confidence {
			out[idx] = h
		}
	}
	return out
}

// applyOverrides replaces market values named by explicit external rules.
func (r *Reconciler) applyOverrides(holdings []models.HoldingRecord, overrides []models.OverrideRule, report *models.ValidationReport) {
	if len(overrides) == 0 {
		return
	}
	rules := map[string]models.OverrideRule{}
	for _, o := range overrides {
		rules[o.Identifier] = o
	}
	for i := range holdings {
		rule, ok := rules[holdings[i].Identifier]
		if !ok {
			continue
		}
		original := 0.0
		if holdings[i].MarketValue != nil {
			original = *holdings[i].MarketValue
		}
		v := rule.MarketValue
		holdings[i].OriginalMarketValue = holdings[i].MarketValue
		holdings[i].MarketValue = &v
		holdings[i].Corrected = true
		if holdings[i].ValueProvenance == nil {
			holdings[i].ValueProvenance = map[models.Field]string{}
		}
		holdings[i].ValueProvenance[models.FieldMarketValue] = models.SourceOverride
		report.CorrectionsApplied = append(report.CorrectionsApplied, models.Correction{
			Identifier: holdings[i].Identifier,
			Original:   original,
			Corrected:  v,
			Rule:       "override",
		})
	}
}

// reconcileTotals compares the extracted total with the expected one and
// either scales (bounded eligibility range, single scalar factor) or flags.
func (r *Reconciler) reconcileTotals(holdings []models.HoldingRecord, expected *models.ExpectedTotals, extracted decimal.Decimal, report *models.ValidationReport) {
	exp := decimal.NewFromFloat(expected.OverallTotal)
	expF := exp.Round(2).InexactFloat64()
	report.ExpectedTotal = &expF
	report.DerivedExpected = expected.Derived

	deviation := extracted.Sub(exp).Abs().Div(exp)
	devF, _ := deviation.Float64()
	report.Deviation = &devF

	tolerance := expected.Tolerance
	if tolerance <= 0 {
		tolerance = r.cfg.ToleranceBand
	}
	if devF <= tolerance {
		return
	}

	if extracted.IsZero() {
		// Nothing to scale; a zero extraction against any expected total is
		// a full deviation.
		report.Unreconciled = true
		report.Unresolved = append(report.Unresolved, models.UnresolvedEntry{
			Identifier: "*", Reason: models.ReasonUnreconciledTotal,
		})
		return
	}

	ratio, _ := extracted.Div(exp).Float64()
	lo, hi := r.cfg.ScalingEligibleRange[0], r.cfg.ScalingEligibleRange[1]
	if ratio < lo || ratio > hi {
		// Outside the band the divergence signals isolated errors, not a
		// systematic factor; blind scaling would corrupt correct holdings.
		log.Printf("[Reconciler] ratio %.3f outside scaling range [%.2f, %.2f], flagging unreconciled", ratio, lo, hi)
		report.Unreconciled = true
		report.Unresolved = append(report.Unresolved, models.UnresolvedEntry{
			Identifier: "*", Reason: models.ReasonUnreconciledTotal,
		})
		return
	}

	factor := exp.Div(extracted)
	factorF, _ := factor.Float64()
	log.Printf("[Reconciler] scaling %d holdings by %.6f", len(holdings), factorF)
	for i := range holdings {
		if holdings[i].MarketValue == nil {
			continue
		}
		original := *holdings[i].MarketValue
		scaled := decimal.NewFromFloat(original).Mul(factor).Round(2).InexactFloat64()
		holdings[i].OriginalMarketValue = &original
		holdings[i].MarketValue = &scaled
		holdings[i].Corrected = true
		report.CorrectionsApplied = append(report.CorrectionsApplied, models.Correction{
			Identifier: holdings[i].Identifier,
			Original:   original,
			Corrected:  scaled,
			Rule:       "scale",
		})
	}
}

// reconcileAssetClasses reports per-class deviations when subtotals were
// supplied. Report-only: per-class divergence never triggers scaling.
func (r *Reconciler) reconcileAssetClasses(holdings []models.HoldingRecord, expected *models.ExpectedTotals, report *models.ValidationReport) {
	if len(expected.AssetClassTotals) == 0 {
		return
	}
	sums := map[string]decimal.Decimal{}
	for _, h := range holdings {
		if h.MarketValue == nil || h.AssetClass == "" {
			continue
		}
		key := strings.ToLower(h.AssetClass)
		sums[key] = sums[key].Add(decimal.NewFromFloat(*h.MarketValue))
	}
	for _, class := range expected.AssetClassTotals {
		if class.Total <= 0 {
			continue
		}
		got := sums[strings.ToLower(class.Name)]
		exp := decimal.NewFromFloat(class.Total)
		dev, _ := got.Sub(exp).Abs().Div(exp).Float64()
		report.AssetClassDeviation = append(report.AssetClassDeviation, models.AssetClassDeviation{
			Name:      class.Name,
			Extracted: got.Round(2).InexactFloat64(),
			Expected:  class.Total,
			Deviation: dev,
		})
	}
}

// sortUnresolved keeps report output deterministic regardless of stage order.
func sortUnresolved(entries []models.UnresolvedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Identifier != entries[j].Identifier {
			return entries[i].Identifier < entries[j].Identifier
		}
		return entries[i].Reason < entries[j].Reason
	})
}
