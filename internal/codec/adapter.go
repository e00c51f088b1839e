package codec

import "context"

// SeekDirection controls Reader.Seek's rounding direction.
type SeekDirection int

const (
	SeekBackward SeekDirection = iota
	SeekForward
)

// DecodeSignal is the four-state result of feeding/pulling a decoder, encoder
// or resampler: either it accepted/produced something, it must be drained
// before it accepts more input, it needs more input before it can produce
// anything, or the chain is exhausted.
type DecodeSignal int

const (
	SignalOK DecodeSignal = iota
	SignalNeedsDrain
	SignalNeedsMore
	SignalEndOfStream
)

// Reader opens a container and discovers its streams.
type Reader interface {
	Streams() []StreamDescriptor
	BestStream(kind StreamKind) (int, bool)
	ReadPacket(ctx context.Context) (Packet, bool, error) // pkt, ok(false=EOS), err
	Seek(ctx context.Context, streamIndex int, ptsInStreamBase int64, dir SeekDirection) error
	Close() error
}

// Writer opens a container for muxing.
type Writer interface {
	AddStream(params EncoderParams, requestedTimeBase Rational) (outStreamIndex int, actualTimeBase Rational, err error)
	WriteHeader(ctx context.Context) error
	WritePacket(ctx context.Context, pkt Packet) error
	WriteTrailer(ctx context.Context) error
	Close() error
}

// Decoder turns Packets into Frames.
type Decoder interface {
	Send(ctx context.Context, pkt Packet) (DecodeSignal, error) // pkt.Null signals end-of-input
	Recv(ctx context.Context) (Frame, DecodeSignal, error)
	Close() error
}

// Encoder turns Frames into Packets.
type Encoder interface {
	RequiredFrameSamples() int // 0 for video, or when the encoder accepts variable-size frames
	Send(ctx context.Context, frame Frame) (DecodeSignal, error) // frame.Null signals end-of-input
	Recv(ctx context.Context) (Packet, DecodeSignal, error)
	TimeBase() Rational
	Close() error
}

// Resampler changes an audio frame's sample rate, format, or channel layout.
type Resampler interface {
	Push(ctx context.Context, frame Frame) error // frame.Null signals end-of-input
	PullExact(ctx context.Context, nbSamples int) (Frame, DecodeSignal, error)
	PullRemainder(ctx context.Context) (Frame, bool, error) // false if nothing buffered
	Close() error
}

// Adapter is the full contract the transcode core requires from a codec
// library: open primitives plus the static capability table JobConfigResolver
// validates against. The core owns no policy about codecs/containers beyond
// what it asks Adapter to validate.
type Adapter interface {
	OpenReader(ctx context.Context, path string) (Reader, error)
	OpenWriter(ctx context.Context, path string, container string) (Writer, error)
	OpenDecoder(ctx context.Context, desc StreamDescriptor, threadHint int) (Decoder, error)
	OpenEncoder(ctx context.Context, params EncoderParams) (Encoder, error)
	OpenResampler(ctx context.Context, srcLayout, srcFormat string, srcRate int, dstLayout, dstFormat string, dstRate int) (Resampler, error)
	ScaleFrame(ctx context.Context, src Frame, dstPixelFormat string, dstW, dstH int) (Frame, error)
	RescaleTimestamps(pkt *Packet, src, dst Rational)

	Capabilities
}

// Capabilities exposes the pure, read-only support-query functions
// JobConfigResolver validates a JobConfig against. Implementations back
// these with a static table; the table is shared freely across jobs.
type Capabilities interface {
	SupportedContainers() []string
	SupportedVideoCodecs(container string) []string
	SupportedAudioCodecs(container string) []string
	SupportedPixelFormats(codec string) []string
	SupportedSampleRates(codec string) []int
	SupportedChannelLayouts(codec string) []string
}

// EncoderKind discriminates the EncoderParams tagged union.
type EncoderKind string

const (
	EncH264     EncoderKind = "h264"
	EncH265     EncoderKind = "h265"
	EncVP8      EncoderKind = "vp8"
	EncVP9      EncoderKind = "vp9"
	EncMJPEG    EncoderKind = "mjpeg"
	EncPNG      EncoderKind = "png"
	EncProRes   EncoderKind = "prores"
	EncAAC      EncoderKind = "aac"
	EncOpus     EncoderKind = "opus"
	EncMP3      EncoderKind = "mp3"
	EncFLAC     EncoderKind = "flac"
	EncPCMS16LE EncoderKind = "pcm_s16le"
	EncPCMS32LE EncoderKind = "pcm_s32le"
	EncSubtitle EncoderKind = "subtitle"
)

// EncoderParams is a tagged union over codec kinds: each variant carries
// exactly what the core sets, per spec.md §6. One function per adapter
// (see internal/codec/ffmpeg) maps each Kind to that library's open-encoder
// call, replacing the teacher's long per-codec constructor chain with a
// single switch.
type EncoderParams struct {
	Kind       EncoderKind
	OutStream  int // populated by JobRunner once Writer.AddStream returns
	ThreadHint int
	TimeBase   Rational

	// Video (H264/H265/VP8/VP9/MJPEG/PNG/ProRes).
	Width       int
	Height      int
	PixelFormat string

	// H264/H265 only.
	CRF int

	// H265 only, per spec.md §6 defaults.
	GlobalQualityQP int
	FlagQScale      bool
	CodecTag        string

	// Audio (AAC/Opus/MP3/FLAC/PCM).
	SampleRate    int
	SampleFormat  string
	ChannelLayout string
}

// DefaultH265Params fills in the H265-specific defaults spec.md §6 names so
// callers only need to set the fields that vary per job.
func DefaultH265Params(p EncoderParams) EncoderParams {
	if p.GlobalQualityQP == 0 {
		p.GlobalQualityQP = 75
	}
	if p.CodecTag == "" {
		p.CodecTag = "hvc1"
	}
	return p
}
