package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/disambig"
	"statement_extraction/pkg/core/structure"
)

// =============================================================================
// FILE LOADERS
// =============================================================================

// LoadPipelineConfig reads the YAML options file. A missing path returns the
// defaults; unknown keys are ignored, missing knobs are filled in.
func LoadPipelineConfig(path string) (models.PipelineConfig, error) {
	if path == "" {
		return models.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.PipelineConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg models.PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.PipelineConfig{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = cfg.Normalized()
	log.Printf("[Config] loaded pipeline options from %s", path)
	return cfg, nil
}

// LoadSignatures reads a lexical signature set from an Hjson file. A missing
// path returns the built-in vocabulary.
func LoadSignatures(path string) (*structure.SignatureSet, error) {
	if path == "" {
		return structure.DefaultSignatures(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signatures: %w", err)
	}
	var sigs structure.SignatureSet
	if err := DecodeHJSON(data, &sigs); err != nil {
		return nil, err
	}
	log.Printf("[Config] loaded signature set from %s", path)
	return &sigs, nil
}

// LoadTemplates reads the format-template library from an Hjson file and
// compiles every template. A missing path returns the built-in library.
func LoadTemplates(path string) ([]disambig.Template, error) {
	if path == "" {
		return disambig.DefaultTemplates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var lib []disambig.Template
	if err := DecodeHJSON(data, &lib); err != nil {
		return nil, err
	}
	for i := range lib {
		if err := lib[i].Compile(); err != nil {
			return nil, err
		}
	}
	log.Printf("[Config] loaded %d format templates from %s", len(lib), path)
	return lib, nil
}

// LoadExpectedTotals reads an expected-totals sidecar, tolerating the JSON
// defects upstream OCR vendors produce. Returns nil when path is empty.
func LoadExpectedTotals(path string) (*models.ExpectedTotals, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expected totals: %w", err)
	}
	var totals models.ExpectedTotals
	if err := DecodeLenientJSON(string(data), &totals); err != nil {
		return nil, err
	}
	if totals.OverallTotal <= 0 {
		return nil, fmt.Errorf("expected totals %s: overallTotal must be positive", path)
	}
	return &totals, nil
}
