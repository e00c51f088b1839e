package reporter

import (
	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
)

// Multi fans one event out to several sinks, e.g. TerminalSink and LogSink
// at once.
type Multi []control.Sink

func (m Multi) Progress(snap control.Snapshot) {
	for _, s := range m {
		s.Progress(snap)
	}
}

func (m Multi) Success(jobID string) {
	for _, s := range m {
		s.Success(jobID)
	}
}

func (m Multi) Fail(jobID string, kind codec.ErrorKind, message string) {
	for _, s := range m {
		s.Fail(jobID, kind, message)
	}
}

var _ control.Sink = Multi(nil)
