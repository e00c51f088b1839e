package ffmpeg

import (
	"bytes"
	"context"
	"strconv"

	"github.com/five82/retrans/internal/codec"
)

// ScaleFrame runs one short-lived ffmpeg process per call through
// libswscale to resize and/or reformat a single video frame. StreamPipeline
// calls this for every decoded video frame, even when its dimensions and
// pixel format already match the target, so the process cost is paid once
// per frame.
func (a *Adapter) ScaleFrame(ctx context.Context, src codec.Frame, dstPixelFormat string, dstW, dstH int) (codec.Frame, error) {
	cmd := a.ffmpegCmd(
		"-v", "error",
		"-f", "rawvideo", "-pix_fmt", src.PixelFormat,
		"-s", strconv.Itoa(src.Width)+"x"+strconv.Itoa(src.Height),
		"-i", "pipe:0",
		"-vf", "scale="+strconv.Itoa(dstW)+":"+strconv.Itoa(dstH),
		"-f", "rawvideo", "-pix_fmt", dstPixelFormat,
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(src.Pixels)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return codec.Frame{}, codec.NewFail(codec.ErrDecoderError, "scale frame: %v (%s)", err, stderr.String())
	}

	return codec.Frame{
		Pixels:      stdout.Bytes(),
		PixelFormat: dstPixelFormat,
		Width:       dstW,
		Height:      dstH,
		PTS:         src.PTS,
	}, nil
}

// RescaleTimestamps converts a packet's pts/dts/duration from src to dst,
// the same rounding Rational.Rescale uses everywhere else in the core.
func (a *Adapter) RescaleTimestamps(pkt *codec.Packet, src, dst codec.Rational) {
	if pkt.PTS != nil {
		pts := src.Rescale(*pkt.PTS, dst)
		pkt.PTS = &pts
	}
	pkt.DTS = src.Rescale(pkt.DTS, dst)
	pkt.Duration = src.Rescale(pkt.Duration, dst)
}
