package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// decoder is 1:1 packet-to-frame: Send buffers exactly the one frame that
// packet decodes to (or marks end-of-stream on a Null packet), and Recv
// drains that buffer before reporting SignalNeedsMore.
type decoder struct {
	kind  codec.StreamKind
	video codec.VideoDescriptor

	pending *codec.Frame
	ended   bool
}

func (d *decoder) Send(ctx context.Context, pkt codec.Packet) (codec.DecodeSignal, error) {
	if pkt.Null {
		d.ended = true
		return codec.SignalOK, nil
	}
	if d.kind == codec.StreamVideo {
		d.pending = &codec.Frame{
			Width:       d.video.Width,
			Height:      d.video.Height,
			PixelFormat: d.video.PixelFormat,
		}
		return codec.SignalOK, nil
	}
	d.pending = &codec.Frame{NbSamples: int(pkt.Duration)}
	return codec.SignalOK, nil
}

func (d *decoder) Recv(ctx context.Context) (codec.Frame, codec.DecodeSignal, error) {
	if d.pending != nil {
		f := *d.pending
		d.pending = nil
		return f, codec.SignalOK, nil
	}
	if d.ended {
		return codec.Frame{}, codec.SignalEndOfStream, nil
	}
	return codec.Frame{}, codec.SignalNeedsMore, nil
}

func (d *decoder) Close() error { return nil }
