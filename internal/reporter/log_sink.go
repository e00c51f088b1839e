package reporter

import (
	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/logging"
)

// LogSink writes every progress/success/fail event through a
// logging.Logger, in 5% buckets for Progress so a long job doesn't flood
// the log file with one line per burst.
type LogSink struct {
	log        *logging.Logger
	lastBucket map[string]int
}

// NewLogSink wraps an existing Logger. log may be nil (logging disabled),
// in which case every method is a no-op.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log, lastBucket: make(map[string]int)}
}

func (s *LogSink) Progress(snap control.Snapshot) {
	if s.log == nil {
		return
	}
	bucket := int(snap.Value * 20) // 5% buckets
	if s.lastBucket[snap.JobID] == bucket {
		return
	}
	s.lastBucket[snap.JobID] = bucket
	s.log.Info("job %s: %.0f%% complete", snap.JobID, snap.Value*100)
}

func (s *LogSink) Success(jobID string) {
	delete(s.lastBucket, jobID)
	if s.log == nil {
		return
	}
	s.log.Info("job %s: succeeded", jobID)
}

func (s *LogSink) Fail(jobID string, kind codec.ErrorKind, message string) {
	delete(s.lastBucket, jobID)
	if s.log == nil {
		return
	}
	s.log.Info("job %s: failed (%s): %s", jobID, kind, message)
}
