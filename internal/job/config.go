// Package job defines JobConfig (the immutable per-job policy), JobState,
// and JobRunner, the single-threaded driver that takes one resolved
// JobConfig from an opened input to a muxed output.
package job

// KeepSource is the sentinel meaning "use whatever the input stream already
// has". It unifies the source's separate "-2" sample-rate sentinel and its
// distinct channel-layout sentinel into one sum type (open question 3).
const KeepSource = ""

// VideoSettings is the video half of a JobConfig. Width/Height of 0 and
// PixelFormat == KeepSource mean "use the input stream's values"; resolved
// by JobConfigResolver before a StreamPipeline is built.
type VideoSettings struct {
	Transcode   bool
	Codec       string // e.g. "h264", "h265", "vp9", ... — see codec.EncoderKind
	Width       int    // 0 == KeepSource
	Height      int    // 0 == KeepSource
	PixelFormat string // KeepSource == ""
	CRF         int    // 0..51
}

// AudioSettings is the audio half of a JobConfig.
type AudioSettings struct {
	Transcode     bool
	Codec         string // e.g. "aac", "opus", "mp3", "flac", "pcm_s16le", ...
	ChannelLayout string // KeepSource == ""
	SampleFormat  string
	SampleRate    int // 0 == KeepSource
}

// Config is the immutable policy for one transcoding job (spec.md §3).
// Built by the caller, consumed by JobConfigResolver; read-only thereafter.
type Config struct {
	Container      string
	Video          VideoSettings
	Audio          AudioSettings
	DecoderThreads int
	EncoderThreads int
	OutputPath     string // fully resolved before the job starts (§9 open Q4)
	TempDir        string // scratch dir for the write-then-rename step; "" skips staging
}

// State is one of the one-shot, monotone JobState values of spec.md §3.
// The only non-monotone transition is Failed -> Prepared on explicit retry.
type State int

const (
	Prepared State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
