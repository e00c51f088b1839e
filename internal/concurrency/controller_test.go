package concurrency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/codec/fakecodec"
	"github.com/five82/retrans/internal/concurrency"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/job"
)

func newTestRecord(id string) *job.Record {
	rec := job.NewRecord(job.Config{Container: "mp4"}, "/in/"+id+".mkv")
	rec.ID = id
	return rec
}

// recordingRun tracks how many calls are in flight at once so the test can
// assert the controller never exceeds its configured capacity.
func recordingRun(concurrent, maxSeen *int64, mu *sync.Mutex, hold time.Duration) concurrency.RunFunc {
	return func(ctx context.Context, adapter codec.Adapter, rec *job.Record, sink control.Sink, cancel control.CancelToken) error {
		n := atomic.AddInt64(concurrent, 1)
		mu.Lock()
		if n > *maxSeen {
			*maxSeen = n
		}
		mu.Unlock()
		time.Sleep(hold)
		atomic.AddInt64(concurrent, -1)
		rec.State = job.Succeeded
		sink.Success(rec.ID)
		return nil
	}
}

func TestControllerNeverExceedsCapacity(t *testing.T) {
	var concurrent, maxSeen int64
	var mu sync.Mutex
	run := recordingRun(&concurrent, &maxSeen, &mu, 20*time.Millisecond)

	adapter := fakecodec.New(fakecodec.Spec{})
	ctrl := concurrency.New(2, adapter, control.NullSink{}, run)

	for i := 0; i < 6; i++ {
		ctrl.Submit(newTestRecord(string(rune('a' + i))))
	}

	err := ctrl.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, int64(2))
}

func TestControllerRunsEveryQueuedJob(t *testing.T) {
	var ran sync.Map
	run := func(ctx context.Context, adapter codec.Adapter, rec *job.Record, sink control.Sink, cancel control.CancelToken) error {
		ran.Store(rec.ID, true)
		rec.State = job.Succeeded
		sink.Success(rec.ID)
		return nil
	}

	adapter := fakecodec.New(fakecodec.Spec{})
	ctrl := concurrency.New(3, adapter, control.NullSink{}, run)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		ctrl.Submit(newTestRecord(id))
	}

	require.NoError(t, ctrl.Run(context.Background()))

	for _, id := range ids {
		_, ok := ran.Load(id)
		assert.True(t, ok, "job %s never ran", id)
	}
}

func TestControllerRetryRequiresFailedState(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	ctrl := concurrency.New(1, adapter, control.NullSink{}, nil)

	rec := newTestRecord("a")
	rec.State = job.Prepared

	err := ctrl.Retry(rec)
	assert.Error(t, err)
}

func TestControllerCancelStopsARunningJob(t *testing.T) {
	started := make(chan struct{})
	run := func(ctx context.Context, adapter codec.Adapter, rec *job.Record, sink control.Sink, cancel control.CancelToken) error {
		close(started)
		for !cancel.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		rec.State = job.Cancelled
		return nil
	}

	adapter := fakecodec.New(fakecodec.Spec{})
	ctrl := concurrency.New(1, adapter, control.NullSink{}, run)
	rec := newTestRecord("a")
	ctrl.Submit(rec)

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(context.Background()) }()

	<-started
	ctrl.Cancel(rec.ID)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop after cancel")
	}
	assert.Equal(t, job.Cancelled, rec.State)
}
