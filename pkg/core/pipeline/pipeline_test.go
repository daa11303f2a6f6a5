package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"

	"statement_extraction/pkg/models"
)

const bondStatement = `Portfolio Statement

Description Quantity Price Market Value
TORONTO DOMINION BANK NOTES 23-23.02.27 REG-S VRN XS2530201644 200'000 99.5400 199'080

Total 19'464'431
`

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(models.DefaultConfig(), nil, nil)
}

func TestRunExtractsBondHolding(t *testing.T) {
	o := newTestOrchestrator()
	doc := models.Document{
		Name:     "statement.txt",
		Text:     bondStatement,
		Expected: &models.ExpectedTotals{OverallTotal: 19464431, Tolerance: 0.02},
	}

	res, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(res.Holdings))
	}
	h := res.Holdings[0]
	if h.Identifier != "XS2530201644" {
		t.Errorf("identifier = %q", h.Identifier)
	}
	if h.Quantity == nil || *h.Quantity != 200000 {
		t.Errorf("quantity = %v, want 200000", h.Quantity)
	}
	if h.Price == nil || *h.Price != 99.54 {
		t.Errorf("price = %v, want 99.54", h.Price)
	}
	if h.MarketValue == nil || *h.MarketValue != 199080 {
		t.Errorf("marketValue = %v, want 199080", h.MarketValue)
	}
	if h.Corrected {
		t.Error("single correct holding must not be corrected")
	}

	// One holding against a 19.5M portfolio: the ratio is far below the
	// scaling eligibility range, so the run is flagged instead of scaled.
	if !res.Validation.Unreconciled {
		t.Error("expected unreconciled run")
	}
	if res.Validation.Deviation == nil || *res.Validation.Deviation < 0.94 {
		t.Errorf("deviation = %v, want ~0.99", res.Validation.Deviation)
	}
}

func TestRunSplitsFusedColumns(t *testing.T) {
	o := newTestOrchestrator()
	doc := models.Document{
		Name: "fused.txt",
		Text: "Bonds Price Market Value\nGOVT XS2530201644 100.200099.6285200'288\n",
	}

	res, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(res.Holdings))
	}
	h := res.Holdings[0]
	if h.MarketValue == nil || *h.MarketValue != 200288 {
		t.Errorf("marketValue = %v, want 200288 from template split", h.MarketValue)
	}
	if h.Price == nil || math.Abs(*h.Price-100.2) > 1e-9 {
		t.Errorf("price = %v, want 100.2", h.Price)
	}
	if h.AssetClass != "bonds" {
		t.Errorf("asset class = %q, want bonds", h.AssetClass)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	o := newTestOrchestrator()
	doc := models.Document{
		Name:     "statement.txt",
		Text:     bondStatement,
		Expected: &models.ExpectedTotals{OverallTotal: 19464431, Tolerance: 0.02},
	}

	first, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("two runs over identical input differ:\n%s\n%s", a, b)
	}
	if first.Validation.RunID == "" || first.Validation.RunID != second.Validation.RunID {
		t.Errorf("run IDs differ: %q vs %q", first.Validation.RunID, second.Validation.RunID)
	}
}

func TestRunDerivesExpectedFromSummary(t *testing.T) {
	o := newTestOrchestrator()
	doc := models.Document{Name: "derived.txt", Text: bondStatement}

	res, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Validation.DerivedExpected {
		t.Error("expected totals should be derived from the summary line")
	}
	if res.Validation.ExpectedTotal == nil || *res.Validation.ExpectedTotal != 19464431 {
		t.Errorf("expected total = %v, want 19464431", res.Validation.ExpectedTotal)
	}
}

func TestRunNonFinancialInput(t *testing.T) {
	o := newTestOrchestrator()
	doc := models.Document{
		Name: "letter.txt",
		Text: "Dear customer,\n\nThank you for your continued business.\n",
	}

	res, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Holdings) != 0 {
		t.Errorf("holdings = %d, want 0 for non-financial input", len(res.Holdings))
	}
	if res.Validation.ExtractedTotal != 0 {
		t.Errorf("extracted total = %v, want 0", res.Validation.ExtractedTotal)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	o := newTestOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, models.Document{Name: "x", Text: bondStatement})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunBatchKeepsInputOrder(t *testing.T) {
	o := newTestOrchestrator()
	docs := []models.Document{
		{Name: "a", Text: bondStatement},
		{Name: "b", Text: bondStatement},
		{Name: "c", Text: bondStatement},
	}

	results := RunBatch(context.Background(), o, docs, 2)
	if len(results) != len(docs) {
		t.Fatalf("results = %d, want %d", len(results), len(docs))
	}
	for i, r := range results {
		if r.Document != docs[i].Name {
			t.Errorf("result[%d] = %q, want %q", i, r.Document, docs[i].Name)
		}
		if r.Err != nil {
			t.Errorf("result[%d] err = %v", i, r.Err)
		}
		if r.Result == nil || len(r.Result.Holdings) != 1 {
			t.Errorf("result[%d] holdings missing", i)
		}
	}
}
