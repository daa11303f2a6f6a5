// Package config loads the static pipeline configuration: options, lexical
// signatures, the format-template library and expected-totals sidecars. All
// of it is read once at process start and shared read-only across workers.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// =============================================================================
// LENIENT INTAKE - Upstream sidecars and hand-edited config files
// =============================================================================

// RepairJSON fixes common JSON defects in machine-produced sidecar files
// (single quotes, trailing commas, unclosed brackets, stray markdown fences).
// Expected-totals files come from assorted OCR vendors; strict parsing alone
// rejects too many of them.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	singleQuoted  = regexp.MustCompile(`'([^'\\]*)'`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// normalizeJSON strips the defects that dominate real sidecar files —
// markdown fences, single-quoted strings, trailing commas — without touching
// any other byte. Numeric literals pass through verbatim.
func normalizeJSON(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	raw = singleQuoted.ReplaceAllString(raw, `"$1"`)
	raw = trailingComma.ReplaceAllString(raw, "$1")
	return strings.TrimSpace(raw)
}

// DecodeLenientJSON unmarshals into schema, tolerating common defects. The
// input is tried verbatim first, then with the lossless normalization above;
// the repair library is the last resort only, because it re-renders numeric
// literals and loses precision on them.
func DecodeLenientJSON(raw string, schema interface{}) error {
	if err := json.Unmarshal([]byte(raw), schema); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), schema); err == nil {
		return nil
	}
	repaired, err := RepairJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(repaired), schema); err != nil {
		return fmt.Errorf("decode after repair: %w", err)
	}
	return nil
}

// DecodeHJSON parses a human-edited Hjson file (comments, unquoted keys,
// optional commas) directly into schema. Signature and template files are
// maintained by hand, so the lenient syntax matters.
func DecodeHJSON(raw []byte, schema interface{}) error {
	if err := hjson.Unmarshal(raw, schema); err != nil {
		return fmt.Errorf("hjson decode: %w", err)
	}
	return nil
}
