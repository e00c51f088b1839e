package job

import (
	"time"

	"github.com/five82/retrans/internal/jobid"
)

// Record is the bookkeeping wrapper ConcurrencyController queues and
// advances: an identity, the one-shot State machine, and the timestamps
// the FIFO ordering and any reporting layer need.
type Record struct {
	ID     string
	Config Config

	InputPath  string
	OutputPath string

	State     State
	Queued    time.Time
	Started   time.Time
	Finished  time.Time
	FailKind  string
	FailMsg   string
}

// NewRecord builds a freshly Prepared Record with a new random ID.
func NewRecord(cfg Config, inputPath string) *Record {
	return &Record{
		ID:         jobid.New(),
		Config:     cfg,
		InputPath:  inputPath,
		OutputPath: cfg.OutputPath,
		State:      Prepared,
		Queued:     timeNow(),
	}
}

// timeNow is a seam so tests can stub the clock; production always uses
// time.Now.
var timeNow = time.Now
