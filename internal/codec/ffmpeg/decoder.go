package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/five82/retrans/internal/codec"
)

// decoder wraps one ffmpeg subprocess that reads a compressed elementary
// bitstream on stdin and writes raw frames on stdout: rawvideo for video,
// interleaved s16le PCM for audio. Frame boundaries are fixed-size (video:
// width*height*bytesPerPixel; audio: a bounded PCM chunk), so Recv can
// read exactly one frame with io.ReadFull without parsing ffmpeg's output
// itself.
type decoder struct {
	kind codec.StreamKind
	desc codec.StreamDescriptor

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	frameSize  int
	closedIn   bool
	endOfInput bool
}

const audioDecodeChunkSamples = 4096

func (a *Adapter) OpenDecoder(ctx context.Context, desc codec.StreamDescriptor, threadHint int) (codec.Decoder, error) {
	args := []string{"-v", "error", "-threads", strconv.Itoa(threadHint)}

	switch desc.Kind {
	case codec.StreamVideo:
		args = append(args, "-f", codecInputFormat(desc.CodecID), "-i", "pipe:0",
			"-f", "rawvideo", "-pix_fmt", desc.Video.PixelFormat, "pipe:1")
	case codec.StreamAudio:
		args = append(args, "-f", codecInputFormat(desc.CodecID), "-i", "pipe:0",
			"-f", "s16le", "-ar", strconv.Itoa(desc.Audio.SampleRate), "-ac", strconv.Itoa(channelCount(desc.Audio.ChannelLayout)),
			"pipe:1")
	default:
		return nil, codec.NewFail(codec.ErrCodecUnavailable, "no decoder for stream kind %v", desc.Kind)
	}

	cmd := a.ffmpegCmd(args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "decoder stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "decoder stdout: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, codec.NewFail(codec.ErrCodecInit, "decoder start: %v", err)
	}

	frameSize := int(float64(desc.Video.Width*desc.Video.Height) * bytesPerPixel(desc.Video.PixelFormat))
	if desc.Kind == codec.StreamAudio {
		frameSize = audioDecodeChunkSamples * channelCount(desc.Audio.ChannelLayout) * pcmBytesPerSample("s16le")
	}

	return &decoder{
		kind:      desc.Kind,
		desc:      desc,
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReaderSize(stdout, 1<<20),
		frameSize: frameSize,
	}, nil
}

func (d *decoder) Send(ctx context.Context, pkt codec.Packet) (codec.DecodeSignal, error) {
	if pkt.Null {
		if !d.closedIn {
			_ = d.stdin.Close()
			d.closedIn = true
		}
		return codec.SignalOK, nil
	}
	if _, err := d.stdin.Write(pkt.Data); err != nil {
		return codec.SignalOK, codec.NewFail(codec.ErrDecoderError, "write packet: %v", err)
	}
	return codec.SignalOK, nil
}

func (d *decoder) Recv(ctx context.Context) (codec.Frame, codec.DecodeSignal, error) {
	if d.endOfInput {
		return codec.Frame{}, codec.SignalEndOfStream, nil
	}

	buf := make([]byte, d.frameSize)
	n, err := io.ReadFull(d.stdout, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			d.endOfInput = true
			if n == 0 {
				return codec.Frame{}, codec.SignalEndOfStream, nil
			}
		} else {
			return codec.Frame{}, codec.SignalOK, codec.NewFail(codec.ErrDecoderError, "read frame: %v", err)
		}
	}

	if d.kind == codec.StreamVideo {
		return codec.Frame{
			Pixels:      buf[:n],
			PixelFormat: d.desc.Video.PixelFormat,
			Width:       d.desc.Video.Width,
			Height:      d.desc.Video.Height,
		}, codec.SignalOK, nil
	}

	bps := pcmBytesPerSample("s16le")
	ch := channelCount(d.desc.Audio.ChannelLayout)
	nbSamples := n / (bps * ch)
	return codec.Frame{
		Samples:       [][]byte{buf[:n]},
		SampleFormat:  "s16le",
		ChannelLayout: d.desc.Audio.ChannelLayout,
		SampleRate:    d.desc.Audio.SampleRate,
		NbSamples:     nbSamples,
	}, codec.SignalOK, nil
}

func (d *decoder) Close() error {
	if !d.closedIn {
		_ = d.stdin.Close()
	}
	return d.cmd.Wait()
}

