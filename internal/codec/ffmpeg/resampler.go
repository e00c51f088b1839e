package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/five82/retrans/internal/codec"
)

// resampler wraps an ffmpeg subprocess built purely around libswresample
// (raw PCM in, raw PCM out) to change sample rate or channel layout between
// the decoder's output and the encoder's requested input. Samples are s16le
// on both sides; the requested destination sample format is not applied.
type resampler struct {
	dstRate   int
	dstFormat string
	dstLayout string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	closedIn bool

	frameBytes int
	pending    []byte
}

func (a *Adapter) OpenResampler(ctx context.Context, srcLayout, srcFormat string, srcRate int, dstLayout, dstFormat string, dstRate int) (codec.Resampler, error) {
	args := []string{
		"-v", "error",
		"-f", "s16le", "-ar", strconv.Itoa(srcRate), "-ac", strconv.Itoa(channelCount(srcLayout)),
		"-i", "pipe:0",
		"-ar", strconv.Itoa(dstRate), "-ac", strconv.Itoa(channelCount(dstLayout)),
		"-f", "s16le", "pipe:1",
	}

	cmd := a.ffmpegCmd(args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "resampler stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "resampler stdout: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "resampler start: %v", err)
	}

	frameBytes := pcmBytesPerSample("s16le") * channelCount(dstLayout)

	return &resampler{
		dstRate:    dstRate,
		dstFormat:  "s16le",
		dstLayout:  dstLayout,
		cmd:        cmd,
		stdin:      stdin,
		stdout:     bufio.NewReaderSize(stdout, 1<<20),
		frameBytes: frameBytes,
	}, nil
}

func (r *resampler) Push(ctx context.Context, frame codec.Frame) error {
	if frame.Null {
		if !r.closedIn {
			_ = r.stdin.Close()
			r.closedIn = true
		}
		return nil
	}
	if len(frame.Samples) == 0 {
		return nil
	}
	_, err := r.stdin.Write(frame.Samples[0])
	if err != nil {
		return codec.NewFail(codec.ErrDecoderError, "resampler write: %v", err)
	}
	return nil
}

func (r *resampler) PullExact(ctx context.Context, nbSamples int) (codec.Frame, codec.DecodeSignal, error) {
	need := nbSamples * r.frameBytes
	for len(r.pending) < need {
		buf := make([]byte, need-len(r.pending))
		n, err := r.stdout.Read(buf)
		if n > 0 {
			r.pending = append(r.pending, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return codec.Frame{}, codec.SignalEndOfStream, nil
			}
			return codec.Frame{}, codec.SignalOK, codec.NewFail(codec.ErrDecoderError, "resampler read: %v", err)
		}
		if n == 0 {
			return codec.Frame{}, codec.SignalNeedsMore, nil
		}
	}

	out := r.pending[:need]
	r.pending = r.pending[need:]
	return r.frame(out, nbSamples), codec.SignalOK, nil
}

func (r *resampler) PullRemainder(ctx context.Context) (codec.Frame, bool, error) {
	for {
		buf := make([]byte, 1<<16)
		n, err := r.stdout.Read(buf)
		if n > 0 {
			r.pending = append(r.pending, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return codec.Frame{}, false, codec.NewFail(codec.ErrDecoderError, "resampler drain: %v", err)
		}
		if n == 0 {
			break
		}
	}

	if len(r.pending) == 0 {
		return codec.Frame{}, false, nil
	}
	nb := len(r.pending) / r.frameBytes
	out := r.pending
	r.pending = nil
	return r.frame(out, nb), true, nil
}

func (r *resampler) frame(data []byte, nbSamples int) codec.Frame {
	return codec.Frame{
		Samples:       [][]byte{data},
		SampleFormat:  r.dstFormat,
		ChannelLayout: r.dstLayout,
		SampleRate:    r.dstRate,
		NbSamples:     nbSamples,
	}
}

func (r *resampler) Close() error {
	if !r.closedIn {
		_ = r.stdin.Close()
	}
	return r.cmd.Wait()
}
