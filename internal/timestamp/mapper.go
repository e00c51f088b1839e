// Package timestamp rebases packet timestamps across the decoder/encoder
// time base and the muxer's actual output time base, and enforces the
// per-pipeline DTS monotonicity invariant muxers themselves do not.
package timestamp

import "github.com/five82/retrans/internal/codec"

// Mapper finalises one pipeline's encoded packets just before they are
// handed to the muxer: it rewrites the stream index, rescales pts/dts/
// duration into the writer's actual time base, and enforces monotonic DTS.
type Mapper struct {
	outStreamIndex int
	encoderTB      codec.Rational
	writerTB       codec.Rational

	haveLast   bool
	lastDTS    int64
	warnedOnce bool
	warn       func(format string, args ...any)
}

// NewMapper builds a Mapper for one pipeline's output stream. warn is called
// at most once for the lifetime of the Mapper, the first time DTS
// monotonicity has to be forced.
func NewMapper(outStreamIndex int, encoderTB, writerTB codec.Rational, warn func(format string, args ...any)) *Mapper {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Mapper{outStreamIndex: outStreamIndex, encoderTB: encoderTB, writerTB: writerTB, warn: warn}
}

// EncoderTimeBase is the time base StreamPipeline assigns frame PTS in,
// before this Mapper rescales them to the writer's actual time base.
func (m *Mapper) EncoderTimeBase() codec.Rational { return m.encoderTB }

// Finalize applies steps 1-4 of spec.md §4.3 to pkt in place.
func (m *Mapper) Finalize(pkt *codec.Packet) {
	pkt.StreamIndex = m.outStreamIndex

	if pkt.PTS != nil {
		pts := m.encoderTB.Rescale(*pkt.PTS, m.writerTB)
		pkt.PTS = &pts
	}
	pkt.DTS = m.encoderTB.Rescale(pkt.DTS, m.writerTB)
	pkt.Duration = m.encoderTB.Rescale(pkt.Duration, m.writerTB)

	if m.haveLast && pkt.DTS <= m.lastDTS {
		if !m.warnedOnce {
			m.warn("stream %d: non-monotonic dts %d <= %d, forcing +1 tick", m.outStreamIndex, pkt.DTS, m.lastDTS)
			m.warnedOnce = true
		}
		pkt.DTS = m.lastDTS + 1
	}
	m.lastDTS = pkt.DTS
	m.haveLast = true

	if pkt.PTS != nil && *pkt.PTS < pkt.DTS {
		pts := pkt.DTS
		pkt.PTS = &pts
	}
}

// ChooseEncoderTimeBase picks the time base StreamPipeline requests for a
// new encoder, per spec.md §4.3: video wants 1/1000 unless the frame rate
// doesn't divide evenly into milliseconds, in which case it asks for a
// higher-resolution tick; audio always wants 1/sample_rate.
func ChooseEncoderTimeBase(isVideo bool, fps codec.Rational, sampleRate int) codec.Rational {
	if !isVideo {
		return codec.NewRational(1, int64(sampleRate))
	}
	if fps.Den != 0 && (1000*fps.Num)%fps.Den == 0 {
		return codec.NewRational(1, 1000)
	}
	// frame rate * 1000 is not integral: request a tick fine enough to
	// represent one frame exactly (the frame period itself).
	return codec.NewRational(fps.Den, fps.Num)
}
