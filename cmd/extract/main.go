// Command extract runs the statement extraction pipeline over one or more
// text files and writes the holdings plus validation report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"statement_extraction/pkg/models"

	"statement_extraction/pkg/core/config"
	"statement_extraction/pkg/core/pipeline"
	"statement_extraction/pkg/core/reconcile"
)

func main() {
	// Environment defaults; a missing .env is fine.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	var (
		configPath     = flag.String("config", os.Getenv("EXTRACT_CONFIG"), "pipeline options YAML")
		signaturesPath = flag.String("signatures", os.Getenv("EXTRACT_SIGNATURES"), "lexical signatures Hjson")
		templatesPath  = flag.String("templates", os.Getenv("EXTRACT_TEMPLATES"), "format template library Hjson")
		expectedPath   = flag.String("expected", "", "expected totals sidecar JSON (applies to every input)")
		overridesPath  = flag.String("overrides", "", "override rules JSON (identifier -> known value)")
		workers        = flag.Int("workers", envInt("EXTRACT_WORKERS", 0), "worker pool size (0 = CPU cores)")
		pretty         = flag.Bool("pretty", false, "indent JSON output")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <file> [file...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.LoadPipelineConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	sigs, err := config.LoadSignatures(*signaturesPath)
	if err != nil {
		log.Fatalf("signatures: %v", err)
	}
	templates, err := config.LoadTemplates(*templatesPath)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}
	expected, err := config.LoadExpectedTotals(*expectedPath)
	if err != nil {
		log.Fatalf("expected totals: %v", err)
	}

	var overrides []models.OverrideRule
	if *overridesPath != "" {
		overrides = reconcile.NewOverrideRegistry(*overridesPath).Rules()
	}

	docs := make([]models.Document, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		docs = append(docs, models.Document{
			Name:      path,
			Text:      string(data),
			Expected:  expected,
			Overrides: overrides,
		})
	}

	orchestrator := pipeline.NewOrchestrator(cfg, sigs, templates)
	results := pipeline.RunBatch(context.Background(), orchestrator, docs, *workers)

	type docResult struct {
		Document string         `json:"document"`
		Error    string         `json:"error,omitempty"`
		Result   *models.Result `json:"result,omitempty"`
	}
	out := make([]docResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = docResult{Document: r.Document, Result: r.Result}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode output: %v", err)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
