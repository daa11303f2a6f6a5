package extract

import (
	"strings"
	"testing"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/normalize"
	"statement_extraction/pkg/core/structure"
)

func TestValidISIN(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"XS2530201644", true},
		{"US0378331005", true},
		{"CH0012032048", true},
		{"DE0007164600", true},
		{"XS2530201645", false}, // check digit off by one
		{"US0378331004", false},
		{"XS253020164", false},  // too short
		{"XS25302016441", false}, // too long
		{"xs2530201644", false}, // lowercase
		{"123456789012", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ValidISIN(tt.code); got != tt.want {
				t.Errorf("ValidISIN(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func extractFrom(t *testing.T, text string) ([]models.Anchor, []models.UnresolvedEntry) {
	t.Helper()
	doc := normalize.NewNormalizer().Normalize("test", text)
	regions := structure.NewAnalyzer(nil).Analyze(doc)
	return NewExtractor(5, nil).Extract(doc, regions)
}

func candidateFor(a models.Anchor, field models.Field) (models.FieldCandidate, bool) {
	for _, c := range a.Candidates {
		if c.Field == field {
			return c, true
		}
	}
	return models.FieldCandidate{}, false
}

func TestExtractPositionalCandidates(t *testing.T) {
	text := `Description Quantity Price Market Value
TORONTO DOMINION BANK NOTES XS2530201644 CHF 200'000 99.5400 199'080
`
	anchors, unresolved := extractFrom(t, text)
	if len(unresolved) != 0 {
		t.Fatalf("unexpected unresolved entries: %v", unresolved)
	}
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	a := anchors[0]
	if a.Identifier != "XS2530201644" {
		t.Errorf("identifier = %q", a.Identifier)
	}

	name, ok := candidateFor(a, models.FieldName)
	if !ok || name.Raw != "TORONTO DOMINION BANK NOTES" {
		t.Errorf("name candidate = %+v, want TORONTO DOMINION BANK NOTES", name)
	}
	ccy, ok := candidateFor(a, models.FieldCurrency)
	if !ok || ccy.Raw != "CHF" {
		t.Errorf("currency candidate = %+v, want CHF", ccy)
	}

	// Three numerals against three numeric header columns: mapped in order.
	checks := []struct {
		field models.Field
		value float64
	}{
		{models.FieldQuantity, 200000},
		{models.FieldPrice, 99.54},
		{models.FieldMarketValue, 199080},
	}
	for _, c := range checks {
		cand, ok := candidateFor(a, c.field)
		if !ok {
			t.Errorf("no candidate for %s", c.field)
			continue
		}
		if cand.Value == nil || *cand.Value != c.value {
			t.Errorf("%s = %+v, want %v", c.field, cand.Value, c.value)
		}
		if cand.Provenance.Rule != "column-hint" {
			t.Errorf("%s rule = %q, want column-hint", c.field, cand.Provenance.Rule)
		}
		if !cand.Corroborated {
			t.Errorf("%s not corroborated despite currency on line", c.field)
		}
	}
}

func TestExtractUnassignedWithoutNumericHints(t *testing.T) {
	// Header names no numeric columns, so numerals stay unassigned.
	text := `Security Currency
APPLE INC US0378331005 1'000 196.4500 196'450
`
	anchors, _ := extractFrom(t, text)
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	got := 0
	for _, c := range anchors[0].Candidates {
		if c.Field == models.FieldUnassigned {
			got++
			if c.Provenance.Rule != "window-scan" {
				t.Errorf("unassigned rule = %q, want window-scan", c.Provenance.Rule)
			}
		}
	}
	if got != 3 {
		t.Errorf("unassigned candidates = %d, want 3", got)
	}
}

func TestExtractNameFromPrecedingLine(t *testing.T) {
	text := `Description Quantity Price Market Value
TORONTO DOMINION BANK NOTES 23-23.02.27 REG-S
XS2530201644 200'000 99.5400 199'080
`
	anchors, _ := extractFrom(t, text)
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	name, ok := candidateFor(anchors[0], models.FieldName)
	if !ok {
		t.Fatal("no name candidate found")
	}
	if !strings.HasPrefix(name.Raw, "TORONTO DOMINION BANK NOTES") {
		t.Errorf("name = %q, want TORONTO DOMINION BANK NOTES prefix", name.Raw)
	}
	if name.Provenance.Line != 1 {
		t.Errorf("name line = %d, want 1", name.Provenance.Line)
	}
}

func TestExtractNoNameFromHeaderLine(t *testing.T) {
	// The only line above the anchor is the column header; it must not be
	// adopted as the security name.
	text := `Description Quantity Price Market Value
XS2530201644 200'000 99.5400 199'080
`
	anchors, _ := extractFrom(t, text)
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	if name, ok := candidateFor(anchors[0], models.FieldName); ok {
		t.Errorf("name candidate = %q, want none", name.Raw)
	}
}

func TestExtractMalformedIdentifierReported(t *testing.T) {
	text := `Description Quantity Price Market Value
ACME CORP XS2530201645 100 50.0000 5'000
ACME CORP XS2530201645 100 50.0000 5'000
`
	anchors, unresolved := extractFrom(t, text)
	if len(anchors) != 0 {
		t.Fatalf("expected no anchors, got %d", len(anchors))
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected 1 deduplicated unresolved entry, got %d", len(unresolved))
	}
	e := unresolved[0]
	if e.Identifier != "XS2530201645" || e.Reason != models.ReasonMalformedIdentifier {
		t.Errorf("unresolved = %+v", e)
	}
}

func TestExtractFusedRunRetained(t *testing.T) {
	text := `Description Quantity Price Market Value
GOVT BOND XS2530201644 100.200099.6285200'288
`
	anchors, _ := extractFrom(t, text)
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	var fused []models.FieldCandidate
	for _, c := range anchors[0].Candidates {
		if c.Provenance.Rule == "fused-run" {
			fused = append(fused, c)
		}
	}
	if len(fused) != 1 {
		t.Fatalf("fused-run candidates = %d, want 1", len(fused))
	}
	if fused[0].Raw != "100.200099.6285200'288" {
		t.Errorf("fused raw = %q", fused[0].Raw)
	}
	if fused[0].Field != models.FieldUnassigned {
		t.Errorf("fused field = %s, want unassigned", fused[0].Field)
	}
}
