// Package pipeline wires the extraction stages into the per-document run:
// Normalizer -> StructureAnalyzer -> EntityExtractor -> NumericDisambiguator
// -> ConfidenceScorer -> Reconciler. Data flows strictly forward; no stage
// re-enters an earlier one.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/disambig"
	"statement_extraction/pkg/core/extract"
	"statement_extraction/pkg/core/normalize"
	"statement_extraction/pkg/core/reconcile"
	"statement_extraction/pkg/core/score"
	"statement_extraction/pkg/core/structure"
)

// Orchestrator manages the end-to-end per-document flow. All stage state is
// read-only after construction, so one orchestrator is safe to share across
// the document worker pool.
type Orchestrator struct {
	cfg           models.PipelineConfig
	normalizer    *normalize.Normalizer
	analyzer      *structure.Analyzer
	extractor     *extract.Extractor
	disambiguator *disambig.Disambiguator
	scorer        *score.Scorer
	reconciler    *reconcile.Reconciler
}

// NewOrchestrator creates an orchestrator. Nil signatures/templates use the
// built-in defaults.
func NewOrchestrator(cfg models.PipelineConfig, sigs *structure.SignatureSet, templates []disambig.Template) *Orchestrator {
	cfg = cfg.Normalized()
	analyzer := structure.NewAnalyzer(sigs)
	return &Orchestrator{
		cfg:           cfg,
		normalizer:    normalize.NewNormalizer(),
		analyzer:      analyzer,
		extractor:     extract.NewExtractor(cfg.ContextWindowRadius, analyzer.Signatures()),
		disambiguator: disambig.NewDisambiguator(templates, cfg),
		scorer:        score.NewScorer(cfg),
		reconciler:    reconcile.NewReconciler(cfg),
	}
}

// Run executes the full pipeline for one document. The call is all-or-
// nothing: cancellation discards partial state, and no stage holds externally
// visible side effects that would need rollback. All recoverable conditions
// land in the ValidationReport; the only error paths are cancellation and an
// invalid ExpectedTotals shape.
func (o *Orchestrator) Run(ctx context.Context, doc models.Document) (*models.Result, error) {
	start := time.Now()
	runID := runIDFor(doc)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 1: Normalizer.
	raw := o.normalizer.Normalize(doc.Name, doc.Text)
	if raw.NonFinancial {
		// Likely non-financial input; report zero holdings and let the
		// caller decide whether to abort.
		return o.reconciler.Reconcile(runID, doc.Name, nil, doc.Expected, doc.Overrides, nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: StructureAnalyzer.
	regions := o.analyzer.Analyze(raw)
	expected := doc.Expected
	if expected == nil {
		// Summary tables feed the expected totals only when the caller did
		// not supply them.
		expected = o.analyzer.DeriveTotals(raw, o.cfg.ToleranceBand)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: EntityExtractor.
	anchors, unresolved := o.extractor.Extract(raw, regions)

	// Stage 4: NumericDisambiguator.
	for i := range anchors {
		unresolved = append(unresolved, o.disambiguator.Process(&anchors[i], expected)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 5: ConfidenceScorer.
	holdings := make([]models.HoldingRecord, 0, len(anchors))
	for i := range anchors {
		record, issues := o.scorer.Resolve(&anchors[i], expected)
		holdings = append(holdings, record)
		unresolved = append(unresolved, issues...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 6: Reconciler.
	result, err := o.reconciler.Reconcile(runID, doc.Name, holdings, expected, doc.Overrides, unresolved)
	if err != nil {
		return nil, err
	}

	log.Printf("[Pipeline] %q: %d holdings in %v", doc.Name, result.Validation.HoldingsCount, time.Since(start))
	return result, nil
}

// runIDFor derives a stable run ID from the document content: identical
// input yields byte-identical output, including the report's run ID.
func runIDFor(doc models.Document) string {
	sum := sha256.Sum256([]byte(doc.Text))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%x", doc.Name, sum))).String()
}
