// Package concurrency implements the job-level concurrency controller:
// a FIFO queue of Prepared jobs dispatched onto a bounded number of
// concurrent runners, grounded on the teacher's semaphore-plus-goroutine
// worker pool (internal/encode.EncodeAll) but operating on whole jobs
// instead of chunks.
package concurrency

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/job"
)

// RunFunc executes one job's full transcode. Swappable in tests for a
// fake that never touches a real codec adapter.
type RunFunc func(ctx context.Context, adapter codec.Adapter, rec *job.Record, sink control.Sink, cancel control.CancelToken) error

// Controller holds a cap-bounded number of concurrently Running jobs. It
// owns no retry policy: a Failed job only returns to Prepared when a
// caller explicitly asks for it (spec.md §5).
type Controller struct {
	capacity int
	adapter  codec.Adapter
	sink     control.Sink
	run      RunFunc

	mu      sync.Mutex
	queue   []*job.Record // FIFO, Prepared jobs only
	running map[string]*control.AtomicToken
}

// New builds a Controller. capacity must be >= 1. adapter is the codec
// library every job runs against; sink receives every job's progress/
// success/fail events, tagged by job ID.
func New(capacity int, adapter codec.Adapter, sink control.Sink, run RunFunc) *Controller {
	if capacity < 1 {
		capacity = 1
	}
	if sink == nil {
		sink = control.NullSink{}
	}
	if run == nil {
		run = job.Run
	}
	return &Controller{capacity: capacity, adapter: adapter, sink: sink, run: run, running: make(map[string]*control.AtomicToken)}
}

// Submit appends a Prepared job to the FIFO queue. It does not start the
// job; Run dispatches queued jobs in order as runner slots are free.
func (c *Controller) Submit(rec *job.Record) {
	c.mu.Lock()
	c.queue = append(c.queue, rec)
	c.mu.Unlock()
}

// Cancel requests cancellation of a currently Running job by ID. No-op if
// the job isn't running (e.g. still queued, or already finished); a job
// still in the queue is not affected and Controller has no method to
// remove it.
func (c *Controller) Cancel(jobID string) {
	c.mu.Lock()
	tok := c.running[jobID]
	c.mu.Unlock()
	if tok != nil {
		tok.Cancel()
	}
}

// Retry moves a Failed job back to Prepared and re-enqueues it. Callers
// decide when/whether to retry; Controller never does this on its own.
func (c *Controller) Retry(rec *job.Record) error {
	if rec.State != job.Failed {
		return fmt.Errorf("cannot retry job %s: not in failed state (%s)", rec.ID, rec.State)
	}
	rec.State = job.Prepared
	rec.FailKind = ""
	rec.FailMsg = ""
	c.Submit(rec)
	return nil
}

// Run drains the queue, running up to capacity jobs concurrently, until
// the queue is empty and every dispatched job has finished, or ctx is
// cancelled. Callers should finish Submit-ing the batch before calling
// Run; jobs Submitted after the queue has drained to empty are not
// picked up by an in-flight Run. The capacity bound and the group's
// first-error-wins semantics are provided by errgroup.Group's SetLimit,
// replacing a hand-rolled semaphore/WaitGroup pair.
func (c *Controller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.capacity)

	for {
		rec, ok := c.pop()
		if !ok {
			break
		}
		if gctx.Err() != nil {
			break
		}

		tok := &control.AtomicToken{}
		c.mu.Lock()
		c.running[rec.ID] = tok
		c.mu.Unlock()

		g.Go(func() error {
			defer func() {
				c.mu.Lock()
				delete(c.running, rec.ID)
				c.mu.Unlock()
			}()
			if err := c.run(gctx, c.adapter, rec, c.sink, tok); err != nil {
				return fmt.Errorf("job %s: %w", rec.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return gctx.Err()
}

func (c *Controller) pop() (*job.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	rec := c.queue[0]
	c.queue = c.queue[1:]
	return rec, true
}

// RunningCount reports how many jobs are currently Running, for tests and
// for a presentation layer that wants to show "N of cap slots busy".
func (c *Controller) RunningCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}
