package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// encoder emits one output packet per Send immediately — no internal
// lookahead buffering — so tests can reason about packet counts exactly.
type encoder struct {
	params   codec.EncoderParams
	required int

	queue []codec.Packet
	ended bool
}

func (e *encoder) RequiredFrameSamples() int { return e.required }

func (e *encoder) Send(ctx context.Context, frame codec.Frame) (codec.DecodeSignal, error) {
	if frame.Null {
		e.ended = true
		return codec.SignalOK, nil
	}
	pts := frame.PTS
	duration := int64(1)
	if frame.NbSamples > 0 {
		duration = int64(frame.NbSamples)
	}
	e.queue = append(e.queue, codec.Packet{
		Data:        []byte{0},
		PTS:         &pts,
		DTS:         pts,
		Duration:    duration,
		StreamIndex: e.params.OutStream,
	})
	return codec.SignalOK, nil
}

func (e *encoder) Recv(ctx context.Context) (codec.Packet, codec.DecodeSignal, error) {
	if len(e.queue) > 0 {
		pkt := e.queue[0]
		e.queue = e.queue[1:]
		return pkt, codec.SignalOK, nil
	}
	if e.ended {
		return codec.Packet{}, codec.SignalEndOfStream, nil
	}
	return codec.Packet{}, codec.SignalNeedsMore, nil
}

func (e *encoder) TimeBase() codec.Rational { return e.params.TimeBase }

func (e *encoder) Close() error { return nil }
