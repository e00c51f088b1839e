// Package control holds the two small capability interfaces design note §9
// replaces the source's deep listener+interrupt mix-in with: ProgressSink
// (progress/success/fail) and CancelToken. JobRunner and InterleaveScheduler
// hold them; the presentation layer (or a test) implements them.
package control

import (
	"sync/atomic"

	"github.com/five82/retrans/internal/codec"
)

// CancelToken is a boolean flag readable atomically from the job worker.
// Some other context (a controller, a UI cancel button) sets it; the job
// worker polls it at suspension points only — cancellation is cooperative.
type CancelToken interface {
	Cancelled() bool
}

// Snapshot is one progress event, coalesced to at most one per scheduler
// burst per spec.md §4.5.
type Snapshot struct {
	JobID   string
	Value   float64 // clamped to [0, 1) until Success fires 1.0
}

// Sink receives the three terminal/ongoing events JobRunner emits: Progress
// zero or more times while Running, then exactly one of Success or Fail
// (a cancelled job emits neither).
type Sink interface {
	Progress(Snapshot)
	Success(jobID string)
	Fail(jobID string, kind codec.ErrorKind, message string)
}

// NullSink discards every event. Useful as a default when the caller
// doesn't want progress reporting.
type NullSink struct{}

func (NullSink) Progress(Snapshot)                             {}
func (NullSink) Success(string)                                 {}
func (NullSink) Fail(string, codec.ErrorKind, string) {}

// NoCancel is a CancelToken that never fires. The zero value is ready to use.
type NoCancel struct{}

func (NoCancel) Cancelled() bool { return false }

// AtomicToken is a CancelToken backed by an atomic flag, settable by any
// goroutine (e.g. a ConcurrencyController) and polled by the job worker.
type AtomicToken struct {
	flag atomic.Bool
}

func (t *AtomicToken) Cancel()         { t.flag.Store(true) }
func (t *AtomicToken) Cancelled() bool { return t.flag.Load() }
