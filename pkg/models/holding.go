// Package models defines the shared data model for the statement extraction
// pipeline: raw documents, table regions, field candidates, resolved holdings
// and the per-run validation report.
package models

// =============================================================================
// RAW DOCUMENT - Normalized text plus per-line records
// =============================================================================

// LineRole classifies a line after structure analysis.
type LineRole string

const (
	LineRoleHeader LineRole = "header"
	LineRoleRow    LineRole = "row"
	LineRoleTotal  LineRole = "total"
	LineRoleBlank  LineRole = "blank"
	LineRoleText   LineRole = "text" // default before/without classification
)

// Line is one line of the normalized document body.
type Line struct {
	Index      int      `json:"index"`
	Raw        string   `json:"raw"`        // Original text as received
	Text       string   `json:"text"`       // Whitespace-collapsed, numerals canonicalized
	Role       LineRole `json:"role"`       // Assigned by the StructureAnalyzer
	Currencies []string `json:"currencies"` // ISO 4217 codes tagged inline
}

// RawDocument is the immutable output of the Normalizer.
type RawDocument struct {
	Name         string `json:"name,omitempty"` // Optional document identifier for logging
	Text         string `json:"-"`              // Full normalized body
	Lines        []Line `json:"lines"`
	NonFinancial bool   `json:"nonFinancial"` // No numeric or identifier tokens anywhere
}

// =============================================================================
// TABLE REGION - Contiguous line range classified by the StructureAnalyzer
// =============================================================================

// RegionType identifies what kind of table a region holds.
type RegionType string

const (
	RegionHoldings RegionType = "holdings"
	RegionSummary  RegionType = "summary"
	RegionUnknown  RegionType = "unknown"
)

// ColumnHint records that a header keyword implying a semantic field was seen
// at a given left-to-right position in the region's header line.
type ColumnHint struct {
	Position int    `json:"position"` // 0-based order among matched keywords
	Field    Field  `json:"field"`
	Keyword  string `json:"keyword"` // The lexical keyword that matched
}

// TableRegion is a contiguous run of row lines governed by one header.
type TableRegion struct {
	StartLine  int          `json:"startLine"` // First row line (inclusive)
	EndLine    int          `json:"endLine"`   // Last row line (inclusive)
	HeaderLine int          `json:"headerLine"`
	Type       RegionType   `json:"type"`
	Hints      []ColumnHint `json:"hints"`
	BondHint   bool         `json:"bondHint"` // Header suggests nominal/par-quoted instruments
}

// HintFor returns the column hint for a field, if the header declared one.
func (r *TableRegion) HintFor(f Field) (ColumnHint, bool) {
	for _, h := range r.Hints {
		if h.Field == f {
			return h, true
		}
	}
	return ColumnHint{}, false
}

// Contains reports whether a line index falls inside the region's row range.
func (r *TableRegion) Contains(line int) bool {
	return line >= r.StartLine && line <= r.EndLine
}

// =============================================================================
// FIELD CANDIDATES - One proposed value for one semantic field
// =============================================================================

// Field names a semantic holding field a candidate may propose.
type Field string

const (
	FieldIdentifier  Field = "identifier"
	FieldName        Field = "name"
	FieldQuantity    Field = "quantity"
	FieldPrice       Field = "price"
	FieldMarketValue Field = "marketValue"
	FieldCurrency    Field = "currency"

	// FieldFactor labels an auxiliary sub-value produced by template splits
	// (e.g., an accrued-interest or FX factor printed between price and
	// value). It never reaches a HoldingRecord.
	FieldFactor Field = "factor"

	// FieldUnassigned marks a numeric token with no column hint and no
	// template match.
	FieldUnassigned Field = "unassigned"
)

// Provenance sources.
const (
	SourceExtracted = "extracted"
	SourceDerived   = "derived"
	SourceOverride  = "override"
)

// Provenance records which rule and source line produced a candidate.
type Provenance struct {
	Line   int    `json:"line"`
	Rule   string `json:"rule"`   // e.g., "column-hint", template name, "window-scan"
	Source string `json:"source"` // "extracted", "derived" or "override"
}

// FieldCandidate is one proposed value for one semantic field of one anchor.
type FieldCandidate struct {
	Field      Field      `json:"field"`
	Raw        string     `json:"raw"`
	Value      *float64   `json:"value"` // nil for non-numeric fields
	Text       string     `json:"text"`  // For name/currency candidates
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	// LineDistance is the absolute distance from the anchor line, kept for
	// proximity scoring and tie-breaking.
	LineDistance int `json:"lineDistance"`
	// Corroborated is set when an explicit currency token shares the line.
	Corroborated bool `json:"corroborated"`
	// OutOfRange is set by the scorer when the value falls outside the
	// plausible band; the candidate is kept but confidence-capped.
	OutOfRange bool `json:"outOfRange"`
}

// Anchor groups all field candidates gathered around one identifier match.
type Anchor struct {
	Identifier string           `json:"identifier"`
	Line       int              `json:"line"`
	Region     *TableRegion     `json:"-"`
	Candidates []FieldCandidate `json:"candidates"`
}

// =============================================================================
// HOLDING RECORD - The resolved entity
// =============================================================================

// HoldingRecord is one resolved holding. Numeric fields are pointers: nil
// means the field could not be extracted (retained for audit, not dropped).
type HoldingRecord struct {
	Identifier          string   `json:"identifier"`
	Name                string   `json:"name"`
	Quantity            *float64 `json:"quantity"`
	Price               *float64 `json:"price"`
	Currency            string   `json:"currency"`
	MarketValue         *float64 `json:"marketValue"`
	Confidence          float64  `json:"confidence"`
	Corrected           bool     `json:"corrected"`
	OriginalMarketValue *float64 `json:"originalMarketValue,omitempty"`

	// Audit fields, not part of the output contract.
	AnchorLine       int               `json:"-"`
	AssetClass       string            `json:"-"` // e.g., "bonds"; from the region header
	FieldConfidences map[Field]float64 `json:"-"`
	ValueProvenance  map[Field]string  `json:"-"` // field -> provenance source
}

// =============================================================================
// EXPECTED TOTALS - Externally supplied reconciliation targets
// =============================================================================

// AssetClassTotal is an optional per-asset-class subtotal.
type AssetClassTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// ExpectedTotals is the read-only reconciliation input.
type ExpectedTotals struct {
	OverallTotal     float64           `json:"overallTotal"`
	AssetClassTotals []AssetClassTotal `json:"assetClassTotals,omitempty"`
	Tolerance        float64           `json:"tolerance"`
	// Derived is set when the totals were recovered from a summary table of
	// the document itself rather than supplied by the caller.
	Derived bool `json:"derived,omitempty"`
}

// OverrideRule is an externally supplied per-identifier correction
// (identifier -> known market value). Never baked into pipeline logic.
type OverrideRule struct {
	Identifier  string  `json:"identifier"`
	MarketValue float64 `json:"marketValue"`
	Note        string  `json:"note,omitempty"`
}

// =============================================================================
// VALIDATION REPORT - Per-run diagnostics, produced once, immutable
// =============================================================================

// Reason tags for unresolved entries. All non-fatal.
const (
	ReasonMalformedIdentifier = "MalformedIdentifier"
	ReasonAmbiguousNumericRun = "AmbiguousNumericRun"
	ReasonOutOfRangeValue     = "OutOfRangeValue"
	ReasonUnreconciledTotal   = "UnreconciledTotal"
	ReasonDuplicateIdentifier = "DuplicateIdentifier"
)

// UnresolvedEntry is one holding (or near-holding) that failed validation.
type UnresolvedEntry struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// Correction records one value adjustment applied by the Reconciler.
type Correction struct {
	Identifier string  `json:"identifier"`
	Original   float64 `json:"original"`
	Corrected  float64 `json:"corrected"`
	Rule       string  `json:"rule"` // "scale" or "override"
}

// AssetClassDeviation reports per-asset-class reconciliation, when subtotals
// were supplied.
type AssetClassDeviation struct {
	Name      string  `json:"name"`
	Extracted float64 `json:"extracted"`
	Expected  float64 `json:"expected"`
	Deviation float64 `json:"deviation"`
}

// ValidationReport is the per-run output of the Reconciler.
type ValidationReport struct {
	RunID               string                `json:"runId"`
	Document            string                `json:"document,omitempty"`
	HoldingsCount       int                   `json:"holdingsCount"`
	ExtractedTotal      float64               `json:"extractedTotal"`
	ExpectedTotal       *float64              `json:"expectedTotal,omitempty"`
	Deviation           *float64              `json:"deviation,omitempty"`
	DerivedExpected     bool                  `json:"derivedExpected,omitempty"`
	Unreconciled        bool                  `json:"unreconciled"`
	CorrectionsApplied  []Correction          `json:"correctionsApplied"`
	Unresolved          []UnresolvedEntry     `json:"unresolved"`
	AssetClassDeviation []AssetClassDeviation `json:"assetClassDeviations,omitempty"`
}

// Result is the JSON-serializable envelope returned to the transport layer.
type Result struct {
	Holdings   []HoldingRecord  `json:"holdings"`
	Validation ValidationReport `json:"validation"`
}
