// Package fakecodec is a deterministic, in-memory codec.Adapter used only
// by tests: it never shells out, never touches a filesystem, and produces
// exactly the packet/frame counts its Spec describes so the tests in
// internal/pipeline, internal/job, internal/resolve, and
// internal/concurrency can assert on exact numbers instead of tolerances.
package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// Spec describes one synthetic input: a video track, an audio track, or
// both. A zero VideoFrames/AudioTotalSamples means that track is absent.
type Spec struct {
	Container string

	VideoFrames  int
	VideoFPS     codec.Rational
	VideoWidth   int
	VideoHeight  int
	VideoPixFmt  string
	VideoCodecID string

	AudioTotalSamples int64
	AudioFrameSize    int64 // samples per source packet; last packet may be short
	AudioSampleRate   int
	AudioChannels     string
	AudioSampleFormat string
	AudioCodecID      string
}

func (s Spec) hasVideo() bool { return s.VideoFrames > 0 }
func (s Spec) hasAudio() bool { return s.AudioTotalSamples > 0 }

const (
	videoStreamIndex = 0
	audioStreamIndex = 1
)

// Adapter is a codec.Adapter over a fixed Spec. Every OpenReader call
// (the path argument is ignored) starts a fresh synthetic demux from the
// beginning of the configured stream(s).
type Adapter struct {
	spec Spec
}

// New builds an Adapter that always serves spec regardless of what path
// OpenReader is given.
func New(spec Spec) *Adapter { return &Adapter{spec: spec} }

func (a *Adapter) OpenReader(ctx context.Context, path string) (codec.Reader, error) {
	return newReader(a.spec), nil
}

func (a *Adapter) OpenWriter(ctx context.Context, path string, container string) (codec.Writer, error) {
	return newWriter(), nil
}

func (a *Adapter) OpenDecoder(ctx context.Context, desc codec.StreamDescriptor, threadHint int) (codec.Decoder, error) {
	return &decoder{kind: desc.Kind, video: desc.Video}, nil
}

func (a *Adapter) OpenEncoder(ctx context.Context, params codec.EncoderParams) (codec.Encoder, error) {
	required := 0
	switch params.Kind {
	case codec.EncAAC, codec.EncOpus, codec.EncMP3, codec.EncFLAC, codec.EncPCMS16LE, codec.EncPCMS32LE:
		required = 1024
	}
	return &encoder{params: params, required: required}, nil
}

func (a *Adapter) OpenResampler(ctx context.Context, srcLayout, srcFormat string, srcRate int, dstLayout, dstFormat string, dstRate int) (codec.Resampler, error) {
	return &resampler{srcRate: srcRate, dstRate: dstRate, dstLayout: dstLayout, dstFormat: dstFormat}, nil
}

func (a *Adapter) ScaleFrame(ctx context.Context, src codec.Frame, dstPixelFormat string, dstW, dstH int) (codec.Frame, error) {
	out := src
	out.PixelFormat = dstPixelFormat
	out.Width = dstW
	out.Height = dstH
	return out, nil
}

func (a *Adapter) RescaleTimestamps(pkt *codec.Packet, src, dst codec.Rational) {
	if pkt.PTS != nil {
		pts := src.Rescale(*pkt.PTS, dst)
		pkt.PTS = &pts
	}
	pkt.DTS = src.Rescale(pkt.DTS, dst)
	pkt.Duration = src.Rescale(pkt.Duration, dst)
}

func (a *Adapter) SupportedContainers() []string {
	return []string{"mp4", "mov", "mkv", "webm", "avi", "mp3", "wav"}
}

func (a *Adapter) SupportedVideoCodecs(container string) []string {
	return []string{"h264", "h265", "vp9", "vp8"}
}

func (a *Adapter) SupportedAudioCodecs(container string) []string {
	return []string{"aac", "opus", "flac"}
}

func (a *Adapter) SupportedPixelFormats(c string) []string {
	return []string{"yuv420p", "yuv420p10le", "nv12"}
}

func (a *Adapter) SupportedSampleRates(c string) []int {
	return []int{44100, 48000}
}

func (a *Adapter) SupportedChannelLayouts(c string) []string {
	return []string{"mono", "stereo", "5.1"}
}

var _ codec.Adapter = (*Adapter)(nil)
