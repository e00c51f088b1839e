// Package resolve validates a user-supplied job.Config against a codec
// library's capability table and resolves its "keep source" sentinels into
// concrete values by inspecting the input streams.
package resolve

import (
	"slices"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/job"
)

// Resolved is a concrete, validated job.Config: every KeepSource sentinel
// has been replaced with a value taken from the input. Resolving an already
// Resolved config is idempotent (property 4 of spec.md §8): Resolve is a
// pure function of (cfg, descriptors), so applying it twice to its own
// output reproduces the same output.
type Resolved struct {
	job.Config
}

// Resolve validates cfg against caps and fills in KeepSource sentinels using
// video/audio, the StreamDescriptors best_stream(video)/best_stream(audio)
// selected. Either descriptor may be the zero value if that kind isn't
// present in the input and cfg doesn't request transcoding it.
func Resolve(cfg job.Config, caps codec.Capabilities, video, audio *codec.StreamDescriptor) (Resolved, error) {
	out := cfg // value copy; cfg itself is never mutated

	if !slices.Contains(caps.SupportedContainers(), out.Container) {
		return Resolved{}, codec.NewFail(codec.ErrConfigInvalid, "container %q is not supported", out.Container)
	}

	if out.Video.Transcode {
		if video == nil {
			return Resolved{}, codec.NewFail(codec.ErrConfigInvalid, "video transcode requested but input has no video stream")
		}
		if err := resolveVideo(&out.Video, caps, out.Container, *video); err != nil {
			return Resolved{}, err
		}
	}

	if out.Audio.Transcode {
		if audio == nil {
			return Resolved{}, codec.NewFail(codec.ErrConfigInvalid, "audio transcode requested but input has no audio stream")
		}
		if err := resolveAudio(&out.Audio, caps, out.Container, *audio); err != nil {
			return Resolved{}, err
		}
	}

	return Resolved{Config: out}, nil
}

func resolveVideo(v *job.VideoSettings, caps codec.Capabilities, container string, desc codec.StreamDescriptor) error {
	if !slices.Contains(caps.SupportedVideoCodecs(container), v.Codec) {
		return codec.NewFail(codec.ErrConfigInvalid, "video codec %q not supported by container %q", v.Codec, container)
	}

	if v.PixelFormat == job.KeepSource {
		v.PixelFormat = desc.Video.PixelFormat
	}
	if !slices.Contains(caps.SupportedPixelFormats(v.Codec), v.PixelFormat) {
		return codec.NewFail(codec.ErrUnsupportedCombo, "codec %q does not support pixel format %q", v.Codec, v.PixelFormat)
	}

	if v.Width == 0 {
		v.Width = desc.Video.Width
	}
	if v.Height == 0 {
		v.Height = desc.Video.Height
	}
	if v.Width <= 0 || v.Height <= 0 {
		return codec.NewFail(codec.ErrConfigInvalid, "invalid video dimensions %dx%d", v.Width, v.Height)
	}

	if v.CRF < 0 || v.CRF > 51 {
		return codec.NewFail(codec.ErrConfigInvalid, "crf %d out of range 0..51", v.CRF)
	}

	return nil
}

func resolveAudio(a *job.AudioSettings, caps codec.Capabilities, container string, desc codec.StreamDescriptor) error {
	if !slices.Contains(caps.SupportedAudioCodecs(container), a.Codec) {
		return codec.NewFail(codec.ErrConfigInvalid, "audio codec %q not supported by container %q", a.Codec, container)
	}

	if a.SampleRate == 0 {
		a.SampleRate = desc.Audio.SampleRate
	}
	if !slices.Contains(caps.SupportedSampleRates(a.Codec), a.SampleRate) {
		return codec.NewFail(codec.ErrUnsupportedCombo, "codec %q does not support sample rate %d", a.Codec, a.SampleRate)
	}

	if a.ChannelLayout == job.KeepSource {
		a.ChannelLayout = desc.Audio.ChannelLayout
	}
	if !slices.Contains(caps.SupportedChannelLayouts(a.Codec), a.ChannelLayout) {
		return codec.NewFail(codec.ErrUnsupportedCombo, "codec %q does not support channel layout %q", a.Codec, a.ChannelLayout)
	}

	if a.SampleFormat == job.KeepSource {
		a.SampleFormat = desc.Audio.SampleFormat
	}

	return nil
}
