package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// resampler tracks a running sample count scaled from src to dst rate; it
// carries no actual sample data, only the bookkeeping PullExact/
// PullRemainder need to exercise the short-remainder-frame path (open
// question 1 in the audio-continuity invariant).
type resampler struct {
	srcRate   int
	dstRate   int
	dstLayout string
	dstFormat string

	buffered float64
	ended    bool
}

func (r *resampler) Push(ctx context.Context, frame codec.Frame) error {
	if frame.Null {
		r.ended = true
		return nil
	}
	ratio := 1.0
	if r.srcRate > 0 {
		ratio = float64(r.dstRate) / float64(r.srcRate)
	}
	r.buffered += float64(frame.NbSamples) * ratio
	return nil
}

func (r *resampler) PullExact(ctx context.Context, nbSamples int) (codec.Frame, codec.DecodeSignal, error) {
	if r.buffered >= float64(nbSamples) {
		r.buffered -= float64(nbSamples)
		return r.frame(nbSamples), codec.SignalOK, nil
	}
	if r.ended {
		return codec.Frame{}, codec.SignalEndOfStream, nil
	}
	return codec.Frame{}, codec.SignalNeedsMore, nil
}

func (r *resampler) PullRemainder(ctx context.Context) (codec.Frame, bool, error) {
	if r.buffered <= 0 {
		return codec.Frame{}, false, nil
	}
	n := int(r.buffered + 0.5)
	r.buffered = 0
	if n == 0 {
		return codec.Frame{}, false, nil
	}
	return r.frame(n), true, nil
}

func (r *resampler) frame(n int) codec.Frame {
	return codec.Frame{
		SampleRate:    r.dstRate,
		SampleFormat:  r.dstFormat,
		ChannelLayout: r.dstLayout,
		NbSamples:     n,
	}
}

func (r *resampler) Close() error { return nil }
