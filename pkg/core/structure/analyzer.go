package structure

import (
	"log"
	"regexp"
	"strings"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/normalize"
)

// =============================================================================
// STRUCTURE ANALYZER - RawDocument -> ordered TableRegion list
// =============================================================================

// Analyzer detects table-like regions in a normalized document.
type Analyzer struct {
	signatures *SignatureSet
}

// NewAnalyzer creates an analyzer with the given signature set (nil uses the
// built-in defaults).
func NewAnalyzer(sigs *SignatureSet) *Analyzer {
	if sigs == nil {
		sigs = DefaultSignatures()
	}
	return &Analyzer{signatures: sigs}
}

// Signatures exposes the active signature set for downstream stages (name
// filtering in the extractor uses the NonName markers).
func (a *Analyzer) Signatures() *SignatureSet { return a.signatures }

var (
	identifierShape = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)
	numericToken    = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// maxRowGap is the number of consecutive non-row lines tolerated inside a
// region before it is closed (wrapped entries interleave metadata lines).
const maxRowGap = 2

// Analyze scans the document lines, assigns line roles and returns the
// ordered list of detected table regions. A document with zero holdings
// regions is not an error: the empty holdings set flows through and the
// Reconciler reports the full deviation.
func (a *Analyzer) Analyze(doc *models.RawDocument) []models.TableRegion {
	if doc == nil || len(doc.Lines) == 0 {
		return nil
	}

	var regions []models.TableRegion
	var current *models.TableRegion
	gap := 0

	closeCurrent := func(end int) {
		if current == nil {
			return
		}
		if end >= current.StartLine {
			current.EndLine = end
			regions = append(regions, *current)
		}
		current = nil
		gap = 0
	}

	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.Role == models.LineRoleBlank {
			closeCurrent(i - 1)
			continue
		}

		if a.signatures.matchTotal(line.Text) {
			line.Role = models.LineRoleTotal
			closeCurrent(i - 1)
			continue
		}

		if hints := a.signatures.matchHeader(line.Text); hints != nil {
			// A later header always supersedes the one governing the rows
			// above it, so any open region ends here.
			closeCurrent(i - 1)
			line.Role = models.LineRoleHeader
			current = &models.TableRegion{
				HeaderLine: i,
				StartLine:  i + 1,
				Type:       models.RegionUnknown,
				Hints:      hints,
				BondHint:   a.signatures.matchBond(line.Text),
			}
			continue
		}

		if current == nil {
			continue
		}

		if isRowLine(line.Text) {
			line.Role = models.LineRoleRow
			gap = 0
		} else {
			gap++
			if gap > maxRowGap {
				closeCurrent(i - 1 - gap + 1)
			}
		}
	}
	closeCurrent(len(doc.Lines) - 1)

	// Classify and trim each region.
	out := regions[:0]
	for _, r := range regions {
		r = trimRegion(doc, r)
		if r.EndLine < r.StartLine {
			continue
		}
		r.Type = classifyRegion(doc, r)
		out = append(out, r)
	}

	holdings, summaries := 0, 0
	for _, r := range out {
		switch r.Type {
		case models.RegionHoldings:
			holdings++
		case models.RegionSummary:
			summaries++
		}
	}
	log.Printf("[StructureAnalyzer] %q: regions=%d holdings=%d summary=%d",
		doc.Name, len(out), holdings, summaries)
	return out
}

// isRowLine reports whether a line is a row candidate: it carries an
// identifier-shaped token, or numeric content that can belong to a wrapped
// entry.
func isRowLine(text string) bool {
	if identifierShape.MatchString(text) {
		return true
	}
	return numericToken.MatchString(text)
}

// trimRegion drops leading and trailing non-row lines from the raw extent.
func trimRegion(doc *models.RawDocument, r models.TableRegion) models.TableRegion {
	for r.StartLine <= r.EndLine && doc.Lines[r.StartLine].Role != models.LineRoleRow {
		r.StartLine++
	}
	for r.EndLine >= r.StartLine && doc.Lines[r.EndLine].Role != models.LineRoleRow {
		r.EndLine--
	}
	return r
}

// classifyRegion decides holdings vs summary: a region whose rows never
// contain an identifier-shaped token only aggregates values.
func classifyRegion(doc *models.RawDocument, r models.TableRegion) models.RegionType {
	rows, withID := 0, 0
	for i := r.StartLine; i <= r.EndLine && i < len(doc.Lines); i++ {
		if doc.Lines[i].Role != models.LineRoleRow {
			continue
		}
		rows++
		if identifierShape.MatchString(doc.Lines[i].Text) {
			withID++
		}
	}
	switch {
	case rows == 0:
		return models.RegionUnknown
	case withID > 0:
		return models.RegionHoldings
	default:
		return models.RegionSummary
	}
}

// =============================================================================
// SUMMARY TOTALS - Fallback ExpectedTotals from the document's own summary
// =============================================================================

// DeriveTotals recovers an ExpectedTotals from total-signature lines when the
// caller supplied none: the largest amount on the last total line is taken as
// the portfolio total. Returns nil when no usable total line exists.
func (a *Analyzer) DeriveTotals(doc *models.RawDocument, tolerance float64) *models.ExpectedTotals {
	best := 0.0
	found := false
	for _, line := range doc.Lines {
		if line.Role != models.LineRoleTotal {
			continue
		}
		for _, tok := range strings.Fields(line.Text) {
			v, ok := normalize.ParseAmount(tok)
			if !ok || v <= 0 {
				continue
			}
			if v > best {
				best = v
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	log.Printf("[StructureAnalyzer] %q: derived expected total %.2f from summary lines", doc.Name, best)
	return &models.ExpectedTotals{OverallTotal: best, Tolerance: tolerance, Derived: true}
}
