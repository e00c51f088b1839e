package schedule

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// demuxer fans out one codec.Reader's packets by stream index so two
// StreamPipelines can share a single Reader without either one driving the
// container read loop itself — design note §9 replaces the teacher's
// shareable-reader workaround with open-once-fan-out-by-index.
type demuxer struct {
	reader   codec.Reader
	buffered map[int][]codec.Packet
	eof      bool
}

func newDemuxer(r codec.Reader) *demuxer {
	return &demuxer{reader: r, buffered: make(map[int][]codec.Packet)}
}

// next returns the next packet belonging to streamIndex, reading and
// buffering packets for other streams as it goes. ok is false once the
// container is exhausted and nothing is left buffered for streamIndex.
func (d *demuxer) next(ctx context.Context, streamIndex int) (codec.Packet, bool, error) {
	if buf := d.buffered[streamIndex]; len(buf) > 0 {
		pkt := buf[0]
		d.buffered[streamIndex] = buf[1:]
		return pkt, true, nil
	}
	if d.eof {
		return codec.Packet{}, false, nil
	}
	for {
		pkt, ok, err := d.reader.ReadPacket(ctx)
		if err != nil {
			return codec.Packet{}, false, codec.Annotate(err, "read packet")
		}
		if !ok {
			d.eof = true
			return codec.Packet{}, false, nil
		}
		if pkt.StreamIndex == streamIndex {
			return pkt, true, nil
		}
		d.buffered[pkt.StreamIndex] = append(d.buffered[pkt.StreamIndex], pkt)
	}
}
