package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// HTML FLATTENING - Some upstream extractors emit HTML instead of plain text
// =============================================================================

// looksLikeHTML is a cheap sniff for markup-bearing input.
func looksLikeHTML(text string) bool {
	head := text
	if len(head) > 2048 {
		head = head[:2048]
	}
	lower := strings.ToLower(head)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<table") ||
		strings.Contains(lower, "<body")
}

// FlattenHTML reduces an HTML body to line-oriented plain text: each table
// row becomes one line with cells joined by single spaces, block elements
// become their own lines. Layout geometry is not preserved; the downstream
// stages only need line-oriented text.
func FlattenHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var lines []string

	// Table rows first: one row per line keeps cell adjacency.
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			if t := strings.TrimSpace(cell.Text()); t != "" {
				cells = append(cells, t)
			}
		})
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	})

	// Non-table block text.
	doc.Find("p, h1, h2, h3, h4, li").Each(func(_ int, block *goquery.Selection) {
		if block.Closest("table").Length() > 0 {
			return
		}
		if t := strings.TrimSpace(block.Text()); t != "" {
			lines = append(lines, t)
		}
	})

	if len(lines) == 0 {
		// Markup without recognizable blocks: fall back to the bare text.
		return doc.Text(), nil
	}
	return strings.Join(lines, "\n"), nil
}
