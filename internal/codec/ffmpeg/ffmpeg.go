// Package ffmpeg implements codec.Adapter by driving the ffmpeg and
// ffprobe binaries as subprocesses: ffprobe discovers streams and packet
// boundaries, one ffmpeg process per Decoder/Encoder/Resampler handles the
// corresponding raw-frame <-> bitstream conversion over stdin/stdout
// pipes, and a long-lived ffmpeg mux process backs Writer, fed one
// ExtraFiles pipe per stream.
package ffmpeg

import (
	"os"
	"os/exec"
	"strings"

	"github.com/five82/retrans/internal/codec"
)

// Adapter is the real, exec-based codec.Adapter. The zero value is not
// ready to use; build one with New or NewWithBinaries.
type Adapter struct {
	ffmpegBin  string
	ffprobeBin string
}

var _ codec.Adapter = (*Adapter)(nil)

// New resolves ffmpeg/ffprobe from PATH.
func New() *Adapter {
	return NewWithBinaries("ffmpeg", "ffprobe")
}

// NewWithBinaries builds an Adapter against explicit binary paths, falling
// back to deriving ffprobe from ffmpeg's directory (mirroring how the
// retrieval pack's media tools resolve a co-located ffprobe) and finally to
// PATH lookup.
func NewWithBinaries(ffmpegBin, ffprobeBin string) *Adapter {
	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffprobeBin = strings.TrimSpace(ffprobeBin)
	if ffprobeBin == "" {
		ffprobeBin = resolveFFprobe(ffmpegBin)
	}
	return &Adapter{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin}
}

// resolveFFprobe derives an ffprobe path from a concrete ffmpeg path
// (.../ffmpeg -> .../ffprobe) when one exists alongside it, else falls
// back to PATH resolution.
func resolveFFprobe(ffmpegBin string) string {
	if !strings.ContainsRune(ffmpegBin, '/') {
		return "ffprobe"
	}
	dir := ffmpegBin[:strings.LastIndexByte(ffmpegBin, '/')]
	candidate := dir + "/ffprobe"
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	return "ffprobe"
}

func (a *Adapter) ffmpegCmd(args ...string) *exec.Cmd {
	return exec.Command(a.ffmpegBin, args...)
}

func (a *Adapter) ffprobeCmd(args ...string) *exec.Cmd {
	return exec.Command(a.ffprobeBin, args...)
}
