package pipeline

import (
	"context"
	"log"
	"runtime"
	"sync"

	"statement_extraction/pkg/models"
)

// =============================================================================
// BATCH RUNNER - Embarrassingly parallel at the document level
// =============================================================================

// BatchResult pairs one document with its pipeline outcome.
type BatchResult struct {
	Document string
	Result   *models.Result
	Err      error
}

// RunBatch processes documents concurrently with a bounded worker pool.
// workers <= 0 sizes the pool to the available CPU cores. Within one
// document the stages stay sequential; across documents there is no shared
// mutable state, so no locking beyond the job channel is needed. Results are
// returned in input order.
func RunBatch(ctx context.Context, o *Orchestrator, docs []models.Document, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]BatchResult, len(docs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				doc := docs[idx]
				res, err := o.Run(ctx, doc)
				results[idx] = BatchResult{Document: doc.Name, Result: res, Err: err}
			}
		}()
	}

	for idx := range docs {
		select {
		case <-ctx.Done():
			results[idx] = BatchResult{Document: docs[idx].Name, Err: ctx.Err()}
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
		}
	}
	log.Printf("[Batch] processed %d/%d documents with %d workers", ok, len(docs), workers)
	return results
}
