// Package verify performs a lightweight post-transcode sanity check:
// re-probe the output the same way the input was probed and compare
// duration and, for video, dimensions. It never fails a job on its own —
// callers log its Result and move on — since a transcode that already
// muxed a trailer has nothing left to roll back.
package verify

import (
	"context"
	"math"

	"github.com/five82/retrans/internal/codec"
)

// durationToleranceSecs mirrors the teacher's post-encode check: container
// duration rounding and the last GOP's exact frame count can legitimately
// differ by up to a second without indicating a real problem.
const durationToleranceSecs = 1.0

// Result reports what Verify found. A check that could not run reports OK:
// DimensionsOK is true with zero dimensions when either side has no video
// stream, and DurationOK is true with zero drift when the input reports no
// duration.
type Result struct {
	DurationOK    bool
	DurationDrift float64

	DimensionsOK bool
	ExpectedW    int
	ExpectedH    int
	ActualW      int
	ActualH      int
}

// Verify re-opens inputPath and outputPath through adapter and compares
// their best video stream's dimensions and their longest stream duration.
func Verify(ctx context.Context, adapter codec.Adapter, inputPath, outputPath string) (Result, error) {
	in, err := adapter.OpenReader(ctx, inputPath)
	if err != nil {
		return Result{}, codec.Annotate(err, "verify: open input")
	}
	defer in.Close()

	out, err := adapter.OpenReader(ctx, outputPath)
	if err != nil {
		return Result{}, codec.Annotate(err, "verify: open output")
	}
	defer out.Close()

	inVideo := bestVideo(in)
	outVideo := bestVideo(out)

	var res Result
	res.DurationOK = true
	res.DimensionsOK = true

	if inVideo != nil && outVideo != nil {
		res.ExpectedW, res.ExpectedH = inVideo.Video.Width, inVideo.Video.Height
		res.ActualW, res.ActualH = outVideo.Video.Width, outVideo.Video.Height
		res.DimensionsOK = res.ExpectedW == res.ActualW && res.ExpectedH == res.ActualH
	}

	inDur := inputDuration(in)
	outDur := inputDuration(out)
	if inDur > 0 {
		res.DurationDrift = math.Abs(inDur - outDur)
		res.DurationOK = res.DurationDrift <= durationToleranceSecs
	}

	return res, nil
}

func bestVideo(r codec.Reader) *codec.StreamDescriptor {
	idx, ok := r.BestStream(codec.StreamVideo)
	if !ok {
		return nil
	}
	for _, s := range r.Streams() {
		if s.Index == idx {
			return &s
		}
	}
	return nil
}

// inputDuration returns the longest DurationSecs across a reader's
// streams, since container-level duration isn't part of StreamDescriptor.
func inputDuration(r codec.Reader) float64 {
	var max float64
	for _, s := range r.Streams() {
		if s.DurationSecs > max {
			max = s.DurationSecs
		}
	}
	return max
}
