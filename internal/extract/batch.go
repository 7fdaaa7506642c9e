package extract

import (
	"context"
	"errors"
	"time"

	"cast-extractor/internal/diag"
	"cast-extractor/internal/worker"

	"github.com/rs/zerolog/log"
)

// BatchOptions controls the fan-out across files.
type BatchOptions struct {
	Workers int
	Timeout time.Duration
}

// Batch extracts every path in parallel. Files are independent: a failure,
// timeout or fatal header error on one file never stops the others. The
// result has one report per path, in input order.
func Batch(ctx context.Context, paths []string, opts Options, bo BatchOptions) []*Report {
	pool := worker.NewPool[string, *Report](bo.Workers, func(ctx context.Context, path string) (*Report, error) {
		return File(path, opts)
	}).WithTimeout(bo.Timeout)

	tasks := pool.Execute(ctx, paths)
	reports := make([]*Report, len(tasks))
	failed := 0
	for i, t := range tasks {
		r := t.Result
		if r == nil {
			err := t.Err
			if !t.Done {
				err = ctx.Err()
			}
			if err == nil {
				err = errors.New("no result")
			}
			r = failedReport(paths[i], err)
		}
		if r.Status == StatusFailed {
			failed++
		}
		reports[i] = r
	}

	log.Info().Int("files", len(paths)).Int("failed", failed).Msg("Batch complete")
	return reports
}

func failedReport(path string, err error) *Report {
	return &Report{
		File:        path,
		Status:      StatusFailed,
		Error:       err.Error(),
		ChunkTypes:  map[string]int{},
		Chunks:      []Chunk{},
		Diagnostics: []diag.Diagnostic{},
	}
}
