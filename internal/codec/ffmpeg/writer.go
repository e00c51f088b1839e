package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/retrans/internal/codec"
)

// writer muxes every stream's packets into one output file with a single
// ffmpeg process: WriteHeader opens one os.Pipe per added stream, wired into
// the process via cmd.ExtraFiles so ffmpeg sees it as "-i pipe:3", "-i
// pipe:4", and so on. All streams stream-copy straight into the
// container; ffmpeg never re-encodes anything muxer-side.
type writer struct {
	adapter   *Adapter
	path      string
	container string

	streams []streamPipe
	cmd     *exec.Cmd
	started bool
	closed  bool
}

type streamPipe struct {
	params codec.EncoderParams
	w      *os.File // write end, held by WritePacket
}

func (a *Adapter) OpenWriter(ctx context.Context, path string, container string) (codec.Writer, error) {
	return &writer{adapter: a, path: path, container: container}, nil
}

func (w *writer) AddStream(params codec.EncoderParams, requestedTimeBase codec.Rational) (int, codec.Rational, error) {
	if w.started {
		return 0, codec.Rational{}, codec.NewFail(codec.ErrWriterError, "cannot add stream after header written")
	}
	idx := len(w.streams)
	params.OutStream = idx
	w.streams = append(w.streams, streamPipe{params: params})
	return idx, requestedTimeBase, nil
}

func (w *writer) WriteHeader(ctx context.Context) error {
	if w.started {
		return codec.NewFail(codec.ErrWriterError, "header already written")
	}
	if len(w.streams) == 0 {
		return codec.NewFail(codec.ErrWriterError, "no streams added before WriteHeader")
	}

	args := []string{"-v", "error"}
	extraFiles := make([]*os.File, 0, len(w.streams))

	for i := range w.streams {
		r, wr, err := os.Pipe()
		if err != nil {
			return codec.NewFail(codec.ErrWriterError, "stream %d pipe: %v", i, err)
		}
		w.streams[i].w = wr
		extraFiles = append(extraFiles, r)

		fd := 3 + i
		args = append(args, "-f", encoderKindInputFormat(w.streams[i].params.Kind), "-i", "pipe:"+strconv.Itoa(fd))
	}
	for i := range w.streams {
		args = append(args, "-map", strconv.Itoa(i)+":0")
	}
	args = append(args, "-c", "copy", "-f", muxerName(w.container), "-y", w.path)

	cmd := w.adapter.ffmpegCmd(args...)
	cmd.ExtraFiles = extraFiles
	w.cmd = cmd

	if err := cmd.Start(); err != nil {
		return codec.NewFail(codec.ErrWriterError, "mux start: %v", err)
	}
	for _, f := range extraFiles {
		_ = f.Close() // the child now owns these fds; our copies just leak otherwise
	}
	w.started = true
	return nil
}

func (w *writer) WritePacket(ctx context.Context, pkt codec.Packet) error {
	if !w.started {
		return codec.NewFail(codec.ErrWriterError, "WritePacket before WriteHeader")
	}
	if w.closed {
		return codec.NewFail(codec.ErrWriterError, "WritePacket after WriteTrailer")
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(w.streams) {
		return codec.NewFail(codec.ErrWriterError, "packet for unknown stream %d", pkt.StreamIndex)
	}
	if _, err := w.streams[pkt.StreamIndex].w.Write(pkt.Data); err != nil {
		return codec.NewFail(codec.ErrWriterError, "write stream %d: %v", pkt.StreamIndex, err)
	}
	return nil
}

func (w *writer) WriteTrailer(ctx context.Context) error {
	if !w.started {
		return codec.NewFail(codec.ErrWriterError, "WriteTrailer before WriteHeader")
	}
	if w.closed {
		return nil
	}
	w.closed = true
	for _, s := range w.streams {
		_ = s.w.Close()
	}
	if err := w.cmd.Wait(); err != nil {
		return codec.NewFail(codec.ErrWriterError, "mux: %v", err)
	}
	return nil
}

func (w *writer) Close() error {
	if w.started && !w.closed {
		return w.WriteTrailer(context.Background())
	}
	return nil
}

func encoderKindInputFormat(k codec.EncoderKind) string {
	switch k {
	case codec.EncH264:
		return "h264"
	case codec.EncH265:
		return "hevc"
	case codec.EncVP8:
		return "vp8"
	case codec.EncVP9:
		return "vp9"
	case codec.EncMJPEG:
		return "mjpeg"
	case codec.EncAAC:
		return "aac"
	case codec.EncOpus:
		return "ogg"
	case codec.EncMP3:
		return "mp3"
	case codec.EncFLAC:
		return "flac"
	case codec.EncPCMS16LE:
		return "s16le"
	case codec.EncPCMS32LE:
		return "s32le"
	default:
		return "data"
	}
}

func muxerName(container string) string {
	switch strings.ToLower(container) {
	case "mkv":
		return "matroska"
	case "webm":
		return "webm"
	case "mov", "avi", "mp3", "wav":
		return strings.ToLower(container)
	default:
		return "mp4"
	}
}
