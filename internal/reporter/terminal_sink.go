// Package reporter holds control.Sink implementations: TerminalSink for a
// human-facing progress bar and LogSink for the structured run log.
package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
)

// TerminalSink renders one progress bar per job, replacing the previous
// bar when a new job's first Progress event arrives.
type TerminalSink struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	current string

	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

// NewTerminalSink builds a TerminalSink writing to the controlling terminal.
func NewTerminalSink() *TerminalSink {
	return &TerminalSink{
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
	}
}

func (t *TerminalSink) Progress(snap control.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != snap.JobID {
		if t.bar != nil {
			_ = t.bar.Finish()
		}
		t.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription(snap.JobID),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		t.current = snap.JobID
	}
	_ = t.bar.Set(int(snap.Value * 100))
}

func (t *TerminalSink) Success(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil && t.current == jobID {
		_ = t.bar.Finish()
		t.bar = nil
		t.current = ""
	}
	t.green.Printf("%s: done\n", jobID)
}

func (t *TerminalSink) Fail(jobID string, kind codec.ErrorKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil && t.current == jobID {
		_ = t.bar.Finish()
		t.bar = nil
		t.current = ""
	}
	t.red.Fprintf(os.Stderr, "%s: %s\n", jobID, fmt.Sprintf("%s: %s", kind, message))
}
