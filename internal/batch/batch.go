// Package batch fans independent per-file parse-then-analyze pipelines out
// over a worker pool. Files share nothing but read-only input storage, so
// there is no ordering between them; a malformed file is recorded as that
// file's terminal error and never aborts its siblings.
package batch

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alawein/maglogic/internal/analysis"
	"github.com/alawein/maglogic/internal/ovf"
)

// Options configures the per-file analysis pass.
type Options struct {
	Domain   analysis.DomainOptions
	Topology analysis.TopologyOptions
}

// FileResult is the outcome of one file's pipeline.
type FileResult struct {
	Path    string           `json:"path"`
	Result  *analysis.Result `json:"result,omitempty"`
	Err     error            `json:"-"`
	Error   string           `json:"error,omitempty"`
	Elapsed time.Duration    `json:"elapsed_ns"`
}

// Report is the outcome of one batch run.
type Report struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Files    []FileResult  `json:"files"`
	Analyzed int           `json:"analyzed"`
	Failed   int           `json:"failed"`
}

// Runner runs batches. Workers <= 0 means one worker.
type Runner struct {
	Workers int
}

// Run analyzes every path with a pool of workers and collects per-file
// results in input order. Cancelling ctx stops further files from being
// picked up; files already in flight finish. Whether a failed file aborts
// anything beyond itself is the caller's policy, not this package's.
func (r *Runner) Run(ctx context.Context, paths []string, opts Options) *Report {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	report := &Report{
		ID:      uuid.NewString(),
		Started: time.Now(),
		Files:   make([]FileResult, len(paths)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Files[idx] = analyzeOne(paths[idx], opts)
			}
		}()
	}

	for i := range paths {
		if err := ctx.Err(); err != nil {
			report.Files[i] = FileResult{Path: paths[i], Err: err, Error: err.Error()}
			continue
		}
		select {
		case <-ctx.Done():
			err := ctx.Err()
			report.Files[i] = FileResult{Path: paths[i], Err: err, Error: err.Error()}
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range report.Files {
		if report.Files[i].Err != nil {
			report.Failed++
		} else {
			report.Analyzed++
		}
	}
	report.Elapsed = time.Since(report.Started)
	return report
}

// RunDir analyzes every snapshot file in dir matching pattern (e.g.
// "*.ovf"), in sorted order.
func (r *Runner) RunDir(ctx context.Context, dir, pattern string, opts Options) (*Report, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return r.Run(ctx, paths, opts), nil
}

func analyzeOne(path string, opts Options) FileResult {
	start := time.Now()
	fr := FileResult{Path: path}

	grid, err := ovf.ParseFile(path)
	if err == nil {
		fr.Result, err = analysis.Analyze(grid, analysis.Options{
			Domain:   opts.Domain,
			Topology: opts.Topology,
		})
	}
	if err != nil {
		fr.Err = err
		fr.Error = err.Error()
	}
	fr.Elapsed = time.Since(start)
	return fr
}
