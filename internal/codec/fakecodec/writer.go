package fakecodec

import (
	"context"

	"github.com/five82/retrans/internal/codec"
)

// writer records everything written to it so tests can assert directly on
// invariant 4 of the data model (header before any packet, trailer before
// close) and on the exact packets a pipeline produced. Video streams are
// always assigned a 1/90000 time base, deliberately different from the
// 1/1000 or frame-period tick a video encoder requests, so tests exercise
// timestamp.Mapper's rescale path rather than a no-op. Audio streams are
// assigned 1/sample_rate, the same time base an audio encoder requests.
type Writer struct {
	Streams        []codec.EncoderParams
	ActualTB       []codec.Rational
	HeaderWritten  bool
	TrailerWritten bool
	Packets        []codec.Packet
	Closed         bool
}

func newWriter() *Writer { return &Writer{} }

func (w *Writer) AddStream(params codec.EncoderParams, requestedTimeBase codec.Rational) (int, codec.Rational, error) {
	idx := len(w.Streams)
	tb := codec.NewRational(1, 90000)
	if isAudioKind(params.Kind) {
		tb = codec.NewRational(1, int64(params.SampleRate))
	}
	w.Streams = append(w.Streams, params)
	w.ActualTB = append(w.ActualTB, tb)
	return idx, tb, nil
}

func (w *Writer) WriteHeader(ctx context.Context) error {
	w.HeaderWritten = true
	return nil
}

func (w *Writer) WritePacket(ctx context.Context, pkt codec.Packet) error {
	if !w.HeaderWritten {
		return codec.NewFail(codec.ErrWriterError, "write_packet before write_header")
	}
	if w.TrailerWritten {
		return codec.NewFail(codec.ErrWriterError, "write_packet after write_trailer")
	}
	w.Packets = append(w.Packets, pkt)
	return nil
}

func (w *Writer) WriteTrailer(ctx context.Context) error {
	if !w.HeaderWritten {
		return codec.NewFail(codec.ErrWriterError, "write_trailer before write_header")
	}
	w.TrailerWritten = true
	return nil
}

func (w *Writer) Close() error {
	w.Closed = true
	return nil
}

func isAudioKind(k codec.EncoderKind) bool {
	switch k {
	case codec.EncAAC, codec.EncOpus, codec.EncMP3, codec.EncFLAC, codec.EncPCMS16LE, codec.EncPCMS32LE:
		return true
	}
	return false
}
