package worker

import (
	"context"
	"errors"
)

// ErrNotRun is reported for jobs the batch never started
var ErrNotRun = errors.New("job did not run")

// IndexedFunc processes item index of a batch
type IndexedFunc func(ctx context.Context, index int) error

// IndexedResult is the outcome of one indexed job
type IndexedResult struct {
	Index int
	Err   error
}

// GetError returns the job error
func (r *IndexedResult) GetError() error {
	return r.Err
}

type indexedJob struct {
	index int
	fn    IndexedFunc
}

func (j *indexedJob) Execute(ctx context.Context) Result {
	return &IndexedResult{Index: j.index, Err: j.fn(ctx, j.index)}
}

// Batch runs indexed jobs with bounded concurrency. Completion order is
// arbitrary; callers merge by index.
type Batch struct {
	concurrency int
}

// NewBatch creates a batch runner
func NewBatch(concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batch{concurrency: concurrency}
}

// Concurrency returns the worker count
func (b *Batch) Concurrency() int {
	return b.concurrency
}

// Run executes fn for every index in [0, n) and returns one error slot per index.
// Jobs that never started because ctx was cancelled report ctx.Err().
func (b *Batch) Run(ctx context.Context, n int, fn IndexedFunc) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	workers := b.concurrency
	if workers > n {
		workers = n
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	for i := 0; i < n; i++ {
		if !pool.Submit(&indexedJob{index: i, fn: fn}) {
			break
		}
	}

	ran := make([]bool, n)
	for _, result := range pool.Wait() {
		r := result.(*IndexedResult)
		ran[r.Index] = true
		errs[r.Index] = r.Err
	}

	for i := range errs {
		if ran[i] {
			continue
		}
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
		} else {
			errs[i] = ErrNotRun
		}
	}

	return errs
}
