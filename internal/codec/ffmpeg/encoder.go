package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/five82/retrans/internal/codec"
)

// encoder wraps one ffmpeg subprocess that reads raw frames on stdin and
// writes a compressed elementary bitstream on stdout via the codec's raw
// muxer (the same "-f data"-style direct dump reader.go expects on the
// decode side, so a packet this encoder produces round-trips through
// Writer unchanged).
type encoder struct {
	params codec.EncoderParams

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	closedIn bool
	ended    bool

	readChunk int

	// ptsQueue holds each Send'd frame's PTS in order. "-f data" emits a
	// raw bitstream with no timestamps of its own, so Recv reattaches
	// them here, assuming encode order matches submission order (OpenEncoder
	// passes "-bf 0" to the H.264/H.265 encoders so they emit no B-frames).
	ptsQueue []int64
}

const encodedReadChunk = 1 << 16

func (a *Adapter) OpenEncoder(ctx context.Context, params codec.EncoderParams) (codec.Encoder, error) {
	var args []string
	args = append(args, "-v", "error")

	switch {
	case isVideoKind(params.Kind):
		args = append(args,
			"-f", "rawvideo", "-pix_fmt", params.PixelFormat,
			"-s", strconv.Itoa(params.Width)+"x"+strconv.Itoa(params.Height),
			"-i", "pipe:0",
			"-c:v", videoLibrary(params.Kind),
		)
		if params.CRF > 0 {
			args = append(args, "-crf", strconv.Itoa(params.CRF))
		}
		if params.Kind == codec.EncH264 || params.Kind == codec.EncH265 {
			args = append(args, "-bf", "0")
		}
		if params.Kind == codec.EncH265 {
			args = append(args, "-x265-params", "qp="+strconv.Itoa(params.GlobalQualityQP))
			if params.CodecTag != "" {
				args = append(args, "-tag:v", params.CodecTag)
			}
		}
		if params.ThreadHint > 0 {
			args = append(args, "-threads", strconv.Itoa(params.ThreadHint))
		}
		args = append(args, "-f", "data", "pipe:1")
	case isAudioKind(params.Kind):
		args = append(args,
			"-f", "s16le", "-ar", strconv.Itoa(params.SampleRate), "-ac", strconv.Itoa(channelCount(params.ChannelLayout)),
			"-i", "pipe:0",
			"-c:a", audioLibrary(params.Kind),
			"-f", "data", "pipe:1",
		)
	default:
		return nil, codec.NewFail(codec.ErrCodecUnavailable, "no encoder for kind %v", params.Kind)
	}

	cmd := a.ffmpegCmd(args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "encoder stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "encoder stdout: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "encoder start: %v", err)
	}

	return &encoder{
		params:    params,
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReaderSize(stdout, 1<<20),
		readChunk: encodedReadChunk,
	}, nil
}

func isVideoKind(k codec.EncoderKind) bool {
	switch k {
	case codec.EncH264, codec.EncH265, codec.EncVP8, codec.EncVP9, codec.EncMJPEG, codec.EncPNG, codec.EncProRes:
		return true
	}
	return false
}

func isAudioKind(k codec.EncoderKind) bool {
	switch k {
	case codec.EncAAC, codec.EncOpus, codec.EncMP3, codec.EncFLAC, codec.EncPCMS16LE, codec.EncPCMS32LE:
		return true
	}
	return false
}

func videoLibrary(k codec.EncoderKind) string {
	switch k {
	case codec.EncH264:
		return "libx264"
	case codec.EncH265:
		return "libx265"
	case codec.EncVP8:
		return "libvpx"
	case codec.EncVP9:
		return "libvpx-vp9"
	case codec.EncMJPEG:
		return "mjpeg"
	case codec.EncProRes:
		return "prores_ks"
	default:
		return "copy"
	}
}

func audioLibrary(k codec.EncoderKind) string {
	switch k {
	case codec.EncAAC:
		return "aac"
	case codec.EncOpus:
		return "libopus"
	case codec.EncMP3:
		return "libmp3lame"
	case codec.EncFLAC:
		return "flac"
	case codec.EncPCMS16LE:
		return "pcm_s16le"
	case codec.EncPCMS32LE:
		return "pcm_s32le"
	default:
		return "copy"
	}
}

func (e *encoder) RequiredFrameSamples() int {
	if isAudioKind(e.params.Kind) {
		return 1024
	}
	return 0
}

func (e *encoder) Send(ctx context.Context, frame codec.Frame) (codec.DecodeSignal, error) {
	if frame.Null {
		if !e.closedIn {
			_ = e.stdin.Close()
			e.closedIn = true
		}
		return codec.SignalOK, nil
	}

	var data []byte
	if isVideoKind(e.params.Kind) {
		data = frame.Pixels
	} else if len(frame.Samples) > 0 {
		data = frame.Samples[0]
	}
	if _, err := e.stdin.Write(data); err != nil {
		return codec.SignalOK, codec.NewFail(codec.ErrEncoderError, "write frame: %v", err)
	}
	e.ptsQueue = append(e.ptsQueue, frame.PTS)
	return codec.SignalOK, nil
}

func (e *encoder) Recv(ctx context.Context) (codec.Packet, codec.DecodeSignal, error) {
	if e.ended {
		return codec.Packet{}, codec.SignalEndOfStream, nil
	}

	buf := make([]byte, e.readChunk)
	n, err := e.stdout.Read(buf)
	if n == 0 {
		if err == io.EOF {
			e.ended = true
			return codec.Packet{}, codec.SignalEndOfStream, nil
		}
		if err != nil {
			return codec.Packet{}, codec.SignalOK, codec.NewFail(codec.ErrEncoderError, "read packet: %v", err)
		}
		return codec.Packet{}, codec.SignalNeedsMore, nil
	}

	pts := int64(0)
	if len(e.ptsQueue) > 0 {
		pts = e.ptsQueue[0]
		e.ptsQueue = e.ptsQueue[1:]
	}
	duration := int64(1)
	if isAudioKind(e.params.Kind) {
		duration = int64(e.RequiredFrameSamples())
	}

	return codec.Packet{
		Data:        buf[:n],
		PTS:         &pts,
		DTS:         pts,
		Duration:    duration,
		StreamIndex: e.params.OutStream,
	}, codec.SignalOK, nil
}

func (e *encoder) TimeBase() codec.Rational { return e.params.TimeBase }

func (e *encoder) Close() error {
	if !e.closedIn {
		_ = e.stdin.Close()
	}
	return e.cmd.Wait()
}
