package extract

import (
	"log"
	"regexp"
	"strings"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/normalize"
	"statement_extraction/pkg/core/structure"
)

// =============================================================================
// ENTITY EXTRACTOR - TableRegions -> anchors with raw field candidates
// =============================================================================

// Extractor builds a bounded context window around every identifier anchor
// and collects name, currency and numeric candidates from it.
type Extractor struct {
	radius     int
	signatures *structure.SignatureSet
}

// NewExtractor creates an extractor with the given window radius (lines on
// each side of the anchor).
func NewExtractor(radius int, sigs *structure.SignatureSet) *Extractor {
	if radius <= 0 {
		radius = models.DefaultConfig().ContextWindowRadius
	}
	if sigs == nil {
		sigs = structure.DefaultSignatures()
	}
	return &Extractor{radius: radius, signatures: sigs}
}

var numericOnly = regexp.MustCompile(`^[\d\s.,'%\x{2019}-]+$`)

// Extract walks every holdings region and returns one anchor per identifier
// match, plus the malformed identifier tokens seen along the way. Anchors
// with zero numeric candidates are retained: the scorer gives their numeric
// fields confidence 0 and the record survives for audit.
func (e *Extractor) Extract(doc *models.RawDocument, regions []models.TableRegion) ([]models.Anchor, []models.UnresolvedEntry) {
	var anchors []models.Anchor
	var unresolved []models.UnresolvedEntry
	seenMalformed := map[string]bool{}

	for ri := range regions {
		region := &regions[ri]
		if region.Type != models.RegionHoldings {
			continue
		}
		for li := region.StartLine; li <= region.EndLine && li < len(doc.Lines); li++ {
			text := doc.Lines[li].Text
			for _, tok := range looseShape.FindAllString(text, -1) {
				if ValidISIN(tok) {
					anchor := models.Anchor{Identifier: tok, Line: li, Region: region}
					anchor.Candidates = e.collectCandidates(doc, region, li, tok)
					anchors = append(anchors, anchor)
				} else if !seenMalformed[tok] {
					seenMalformed[tok] = true
					unresolved = append(unresolved, models.UnresolvedEntry{
						Identifier: tok,
						Reason:     models.ReasonMalformedIdentifier,
					})
				}
			}
		}
	}

	log.Printf("[EntityExtractor] %q: anchors=%d malformed=%d", doc.Name, len(anchors), len(unresolved))
	return anchors, unresolved
}

// collectCandidates gathers field candidates from the window around one
// anchor line.
func (e *Extractor) collectCandidates(doc *models.RawDocument, region *models.TableRegion, anchorLine int, identifier string) []models.FieldCandidate {
	lo := anchorLine - e.radius
	if lo < 0 {
		lo = 0
	}
	hi := anchorLine + e.radius
	if hi >= len(doc.Lines) {
		hi = len(doc.Lines) - 1
	}

	var out []models.FieldCandidate

	out = append(out, models.FieldCandidate{
		Field:      models.FieldIdentifier,
		Raw:        identifier,
		Text:       identifier,
		Provenance: models.Provenance{Line: anchorLine, Rule: "isin-match", Source: models.SourceExtracted},
	})

	if name, nameLine, ok := e.findName(doc, anchorLine, lo, identifier); ok {
		out = append(out, models.FieldCandidate{
			Field:        models.FieldName,
			Raw:          name,
			Text:         name,
			Provenance:   models.Provenance{Line: nameLine, Rule: "preceding-segment", Source: models.SourceExtracted},
			LineDistance: abs(anchorLine - nameLine),
		})
	}

	for li := lo; li <= hi; li++ {
		line := doc.Lines[li]
		dist := abs(anchorLine - li)
		corroborated := len(line.Currencies) > 0

		for _, ccy := range line.Currencies {
			out = append(out, models.FieldCandidate{
				Field:        models.FieldCurrency,
				Raw:          ccy,
				Text:         ccy,
				Provenance:   models.Provenance{Line: li, Rule: "iso4217-token", Source: models.SourceExtracted},
				LineDistance: dist,
			})
		}

		out = append(out, e.numericCandidates(line, region, dist, corroborated)...)
	}
	return out
}

// numericCandidates extracts every numeric token on a line, tagging each with
// the column-role hint of the governing header when positional correspondence
// is inferable, and preserving fused runs verbatim for the disambiguator.
func (e *Extractor) numericCandidates(line models.Line, region *models.TableRegion, dist int, corroborated bool) []models.FieldCandidate {
	tokens := strings.Fields(line.Text)

	var numeric []string
	var fused []string
	for _, tok := range tokens {
		if looseShape.MatchString(tok) {
			continue // the identifier itself
		}
		if normalize.IsFusedRun(tok) {
			fused = append(fused, tok)
			continue
		}
		if _, ok := normalize.ParseAmount(tok); ok {
			numeric = append(numeric, tok)
		}
	}

	// Positional correspondence: when the line carries exactly as many
	// numeric tokens as the header declared numeric columns, map them in
	// header order. Anything else stays unassigned for the disambiguator.
	var hintOrder []models.Field
	for _, h := range region.Hints {
		switch h.Field {
		case models.FieldQuantity, models.FieldPrice, models.FieldMarketValue:
			hintOrder = append(hintOrder, h.Field)
		}
	}
	positional := len(hintOrder) > 0 && len(numeric) == len(hintOrder)

	var out []models.FieldCandidate
	for i, tok := range numeric {
		v, _ := normalize.ParseAmount(tok)
		field := models.FieldUnassigned
		rule := "window-scan"
		if positional {
			field = hintOrder[i]
			rule = "column-hint"
		}
		value := v
		out = append(out, models.FieldCandidate{
			Field:        field,
			Raw:          tok,
			Value:        &value,
			Provenance:   models.Provenance{Line: line.Index, Rule: rule, Source: models.SourceExtracted},
			LineDistance: dist,
			Corroborated: corroborated,
		})
	}
	for _, run := range fused {
		out = append(out, models.FieldCandidate{
			Field:        models.FieldUnassigned,
			Raw:          run,
			Provenance:   models.Provenance{Line: line.Index, Rule: "fused-run", Source: models.SourceExtracted},
			LineDistance: dist,
			Corroborated: corroborated,
		})
	}
	return out
}

// findName picks the longest line segment preceding the identifier that is
// not numeric-only and not a known non-name marker. The same line is tried
// first, then the window lines above the anchor.
func (e *Extractor) findName(doc *models.RawDocument, anchorLine, lo int, identifier string) (string, int, bool) {
	candidate := ""
	candidateLine := -1

	consider := func(segment string, line int) {
		seg := strings.TrimSpace(segment)
		if seg == "" || numericOnly.MatchString(seg) {
			return
		}
		if e.signatures.IsNonName(seg) {
			return
		}
		seg = trimNumericEdges(seg)
		if len(seg) > len(candidate) {
			candidate = seg
			candidateLine = line
		}
	}

	text := doc.Lines[anchorLine].Text
	if idx := strings.Index(text, identifier); idx > 0 {
		consider(text[:idx], anchorLine)
	}
	for li := anchorLine - 1; li >= lo && candidate == ""; li-- {
		line := doc.Lines[li]
		// Header and total lines are column labels and aggregates, never a
		// security name.
		if line.Role == models.LineRoleHeader || line.Role == models.LineRoleTotal {
			continue
		}
		consider(line.Text, li)
	}

	if candidate == "" {
		return "", 0, false
	}
	return candidate, candidateLine, true
}

// trimNumericEdges strips leading/trailing numeric tokens from a name
// fragment (quantities printed left of the description).
func trimNumericEdges(seg string) string {
	fields := strings.Fields(seg)
	for len(fields) > 0 {
		if _, ok := normalize.ParseAmount(fields[0]); !ok {
			break
		}
		fields = fields[1:]
	}
	for len(fields) > 0 {
		if _, ok := normalize.ParseAmount(fields[len(fields)-1]); !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
