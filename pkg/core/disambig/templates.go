// Package disambig splits fused numeric runs into semantically labeled
// components using an ordered, declarative library of format templates.
package disambig

import (
	"fmt"
	"regexp"
	"strings"

	"statement_extraction/pkg/models"
)

// =============================================================================
// FORMAT TEMPLATES - Declarative split rules, auditable and loadable
// =============================================================================
//
// Text extraction on scanned statements fuses adjacent printed values into a
// single digit run: a price, an accrual factor and a market value printed in
// neighboring columns become "100.200099.6285200'288". Each template is a
// data record describing one concatenation pattern and how its sub-values map
// to semantic fields. Matching order is the library order: most specific
// (most parts) first.

// Part is one positional sub-value of a template.
type Part struct {
	Field   models.Field `json:"field"`
	Pattern string       `json:"pattern"` // Regex fragment for this sub-value
}

// Template describes how one fused run decomposes.
type Template struct {
	Name  string `json:"name"`
	Parts []Part `json:"parts"`

	re *regexp.Regexp
}

// Compile builds the anchored capture regex for a template. Must be called
// once before matching (the loader and DefaultTemplates do this).
func (t *Template) Compile() error {
	var b strings.Builder
	b.WriteString(`^`)
	for _, p := range t.Parts {
		b.WriteString(`(`)
		b.WriteString(p.Pattern)
		b.WriteString(`)`)
	}
	b.WriteString(`$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	t.re = re
	return nil
}

// Split is one labeled component of a matched run.
type Split struct {
	Field models.Field
	Raw   string
}

// Match attempts a structural match of the run against the template.
func (t *Template) Match(run string) ([]Split, bool) {
	if t.re == nil {
		return nil, false
	}
	groups := t.re.FindStringSubmatch(run)
	if groups == nil {
		return nil, false
	}
	out := make([]Split, len(t.Parts))
	for i, p := range t.Parts {
		out[i] = Split{Field: p.Field, Raw: groups[i+1]}
	}
	return out, true
}

// Regex fragments shared by the built-in library. Prices on these statements
// print with four decimals, grouped amounts use the Swiss apostrophe.
const (
	fragPrice4   = `\d{1,3}\.\d{4}`
	fragFactor4  = `\d{1,3}\.\d{4}`
	fragFactor2  = `\d{1,3}\.\d{2}`
	fragGrouped  = `\d{1,3}(?:['\x{2019}]\d{3})+(?:\.\d{2})?`
	fragGroupInt = `\d{1,3}(?:['\x{2019}]\d{3})+`
)

// DefaultTemplates returns the built-in library, compiled, in priority order.
func DefaultTemplates() []Template {
	lib := []Template{
		{
			Name: "quantity-price-value",
			Parts: []Part{
				{Field: models.FieldQuantity, Pattern: fragGroupInt},
				{Field: models.FieldPrice, Pattern: fragPrice4},
				{Field: models.FieldMarketValue, Pattern: fragGrouped},
			},
		},
		{
			Name: "price-factor-value",
			Parts: []Part{
				{Field: models.FieldPrice, Pattern: fragPrice4},
				{Field: models.FieldFactor, Pattern: fragFactor4},
				{Field: models.FieldMarketValue, Pattern: fragGrouped},
			},
		},
		{
			Name: "price-value",
			Parts: []Part{
				{Field: models.FieldPrice, Pattern: fragPrice4},
				{Field: models.FieldMarketValue, Pattern: fragGrouped},
			},
		},
		{
			Name: "quantity-price",
			Parts: []Part{
				{Field: models.FieldQuantity, Pattern: fragGroupInt},
				{Field: models.FieldPrice, Pattern: fragPrice4},
			},
		},
		{
			Name: "factor-value",
			Parts: []Part{
				{Field: models.FieldFactor, Pattern: fragFactor2},
				{Field: models.FieldMarketValue, Pattern: fragGrouped},
			},
		},
	}
	for i := range lib {
		if err := lib[i].Compile(); err != nil {
			// The built-in library is static; a broken pattern is a
			// programming error.
			panic(err)
		}
	}
	return lib
}
