package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

type reader struct {
	spec Spec

	videoNext int
	audioNext int64 // cumulative samples already emitted
}

func newReader(spec Spec) *reader {
	return &reader{spec: spec}
}

func (r *reader) Streams() []codec.StreamDescriptor {
	var out []codec.StreamDescriptor
	if r.spec.hasVideo() {
		out = append(out, codec.StreamDescriptor{
			Index:        videoStreamIndex,
			Kind:         codec.StreamVideo,
			CodecID:      r.spec.VideoCodecID,
			TimeBase:     codec.NewRational(r.spec.VideoFPS.Den, r.spec.VideoFPS.Num),
			DurationSecs: float64(r.spec.VideoFrames) * float64(r.spec.VideoFPS.Den) / float64(r.spec.VideoFPS.Num),
			Video: codec.VideoDescriptor{
				Width:       r.spec.VideoWidth,
				Height:      r.spec.VideoHeight,
				PixelFormat: r.spec.VideoPixFmt,
				FrameRate:   r.spec.VideoFPS,
			},
		})
	}
	if r.spec.hasAudio() {
		out = append(out, codec.StreamDescriptor{
			Index:        audioStreamIndex,
			Kind:         codec.StreamAudio,
			CodecID:      r.spec.AudioCodecID,
			TimeBase:     codec.NewRational(1, int64(r.spec.AudioSampleRate)),
			DurationSecs: float64(r.spec.AudioTotalSamples) / float64(r.spec.AudioSampleRate),
			Audio: codec.AudioDescriptor{
				SampleRate:    r.spec.AudioSampleRate,
				ChannelLayout: r.spec.AudioChannels,
				SampleFormat:  r.spec.AudioSampleFormat,
			},
		})
	}
	return out
}

func (r *reader) BestStream(kind codec.StreamKind) (int, bool) {
	switch kind {
	case codec.StreamVideo:
		if r.spec.hasVideo() {
			return videoStreamIndex, true
		}
	case codec.StreamAudio:
		if r.spec.hasAudio() {
			return audioStreamIndex, true
		}
	}
	return 0, false
}

// ReadPacket interleaves video and audio packets roughly by presentation
// time, the way a real container demux would, so tests exercise the
// scheduler's per-stream-index buffering instead of relying on packets
// already arriving in per-stream order.
func (r *reader) ReadPacket(ctx context.Context) (codec.Packet, bool, error) {
	videoLeft := r.spec.hasVideo() && r.videoNext < r.spec.VideoFrames
	audioLeft := r.spec.hasAudio() && r.audioNext < r.spec.AudioTotalSamples

	if !videoLeft && !audioLeft {
		return codec.Packet{}, false, nil
	}

	takeVideo := videoLeft
	if videoLeft && audioLeft {
		videoPTS := float64(r.videoNext) * float64(r.spec.VideoFPS.Den) / float64(r.spec.VideoFPS.Num)
		audioPTS := float64(r.audioNext) / float64(r.spec.AudioSampleRate)
		takeVideo = videoPTS <= audioPTS
	}

	if takeVideo {
		pts := int64(r.videoNext)
		r.videoNext++
		return codec.Packet{Data: []byte{0}, PTS: &pts, DTS: pts, Duration: 1, StreamIndex: videoStreamIndex}, true, nil
	}

	size := r.spec.AudioFrameSize
	if remaining := r.spec.AudioTotalSamples - r.audioNext; remaining < size {
		size = remaining
	}
	pts := r.audioNext
	r.audioNext += size
	return codec.Packet{Data: []byte{0}, PTS: &pts, DTS: pts, Duration: size, StreamIndex: audioStreamIndex}, true, nil
}

func (r *reader) Seek(ctx context.Context, streamIndex int, ptsInStreamBase int64, dir codec.SeekDirection) error {
	return codec.NewFail(codec.ErrSeek, "fakecodec: seek not supported")
}

func (r *reader) Close() error { return nil }
