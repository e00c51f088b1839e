// Package schedule implements the interleaved audio/video burst loop that
// keeps a transcode job's memory bounded: it never decodes further ahead on
// one stream than roughly half a second past the other, per spec.md §4.4.
package schedule

import (
	"context"
	"math"
	"time"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/pipeline"
)

// burstSeconds is the interleave granularity spec.md §4.4 names.
const burstSeconds = 0.5

// Scheduler drives zero or one video StreamPipeline and zero or one audio
// StreamPipeline from a single shared Reader to a single shared Writer,
// 0.5s of presentation time at a time, then runs the end-of-stream flush
// protocol on whichever pipelines are still active.
type Scheduler struct {
	demux  *demuxer
	writer codec.Writer
	video  *pipeline.StreamPipeline
	audio  *pipeline.StreamPipeline
	cancel control.CancelToken
}

// New builds a Scheduler. video and/or audio may be nil if that kind isn't
// part of this job. cancel may be nil, in which case the job is never
// cancellable.
func New(reader codec.Reader, writer codec.Writer, video, audio *pipeline.StreamPipeline, cancel control.CancelToken) *Scheduler {
	if cancel == nil {
		cancel = control.NoCancel{}
	}
	return &Scheduler{demux: newDemuxer(reader), writer: writer, video: video, audio: audio, cancel: cancel}
}

// Progress is spec.md §4.5's progress = max(video_frac, audio_frac), each
// fraction computed against its pipeline's known-total work (frame-index
// grid for video, expected_samples for audio) and clamped to [0,1).
func (s *Scheduler) Progress() float64 {
	videoFrac := 0.0
	if s.video != nil && s.video.TotalFrames() > 0 {
		videoFrac = clamp01(float64(s.video.VideoFrames()) / float64(s.video.TotalFrames()))
	}
	audioFrac := 0.0
	if s.audio != nil && s.audio.ExpectedSamples() > 0 {
		audioFrac = clamp01(float64(s.audio.AudioSamples()) / float64(s.audio.ExpectedSamples()))
	}
	if audioFrac > videoFrac {
		return audioFrac
	}
	return videoFrac
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}

// Run executes the interleave loop until both pipelines report done, or
// until cancellation is observed, in which case it returns cancelled=true
// without running the flush protocol — the caller (JobRunner) is
// responsible for writing the trailer over whatever was already muxed.
// onBurst, if non-nil, is called once after each burst (both streams
// advanced) so the caller can emit one coalesced progress event.
func (s *Scheduler) Run(ctx context.Context, onBurst func()) (cancelled bool, err error) {
	limit := 0.0
	for {
		if s.cancel.Cancelled() {
			return true, nil
		}

		limit += burstSeconds

		videoDone := true
		if s.video != nil {
			videoDone, err = s.runVideoBurst(ctx, limit)
			if err != nil {
				return false, err
			}
		}
		if s.cancel.Cancelled() {
			return true, nil
		}

		audioDone := true
		if s.audio != nil {
			audioDone, err = s.runAudioBurst(ctx, limit)
			if err != nil {
				return false, err
			}
		}

		if onBurst != nil {
			onBurst()
		}
		if s.cancel.Cancelled() {
			return true, nil
		}

		if videoDone && audioDone {
			break
		}
		// Suspension point (spec.md §5c): yield so a sibling job gets a turn.
		time.Sleep(time.Millisecond)
	}

	if cancelled, err = s.flushAll(ctx); err != nil {
		return false, err
	}
	return cancelled, nil
}

// runVideoBurst advances the video pipeline's frame-index grid while
// frameOffset/targetFPS stays within limit seconds. Returns true once the
// grid is filled (or the source is exhausted) — "no more work remains".
func (s *Scheduler) runVideoBurst(ctx context.Context, limit float64) (bool, error) {
	fps := fpsOf(s.video)
	for {
		if s.cancel.Cancelled() {
			return false, nil
		}
		if s.video.VideoFrames() >= s.video.TotalFrames() {
			return true, nil
		}
		if fps > 0 && float64(s.video.VideoFrames())/fps > limit {
			return false, nil
		}

		pkt, ok, err := s.demux.next(ctx, s.video.InputStreamIndex())
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}

		res, err := s.video.Push(ctx, pkt)
		if err != nil {
			return false, err
		}
		if err := s.writePackets(ctx, res.Packets); err != nil {
			return false, err
		}
		if res.Status == pipeline.PipelineEnded {
			return true, nil
		}
	}
}

// runAudioBurst advances the audio pipeline while its cumulative submitted
// sample count stays within limit seconds at the output sample rate.
func (s *Scheduler) runAudioBurst(ctx context.Context, limit float64) (bool, error) {
	rate := s.audio.OutSampleRate()
	for {
		if s.cancel.Cancelled() {
			return false, nil
		}
		if rate > 0 && float64(s.audio.AudioSamples())/float64(rate) > limit {
			return false, nil
		}

		pkt, ok, err := s.demux.next(ctx, s.audio.InputStreamIndex())
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}

		res, err := s.audio.Push(ctx, pkt)
		if err != nil {
			return false, err
		}
		if err := s.writePackets(ctx, res.Packets); err != nil {
			return false, err
		}
		if res.Status == pipeline.PipelineEnded {
			return true, nil
		}
	}
}

// flushAll runs each active pipeline's end-of-stream protocol in turn,
// checking cancellation once per pipeline (spec.md §4.4: "once per flush
// step"). Returns cancelled=true if cancellation is observed before every
// pipeline has been flushed.
func (s *Scheduler) flushAll(ctx context.Context) (bool, error) {
	for _, p := range []*pipeline.StreamPipeline{s.video, s.audio} {
		if p == nil || p.IsDone() {
			continue
		}
		if s.cancel.Cancelled() {
			return true, nil
		}
		pkts, err := p.Flush(ctx)
		if err != nil {
			return false, err
		}
		if err := s.writePackets(ctx, pkts); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *Scheduler) writePackets(ctx context.Context, pkts []codec.Packet) error {
	for _, pkt := range pkts {
		if err := s.writer.WritePacket(ctx, pkt); err != nil {
			return codec.Annotate(err, "write packet")
		}
	}
	return nil
}

func fpsOf(p *pipeline.StreamPipeline) float64 {
	// A StreamPipeline doesn't expose TargetFPS directly; VideoFrames and
	// TotalFrames are enough to bound the grid, but the burst loop also
	// needs the frame rate to convert frameOffset into seconds. Pipelines
	// built by job's buildVideoPipeline always carry a non-zero rate; this adapter keeps
	// Scheduler decoupled from pipeline.Config's internal field layout.
	return p.FPSHint()
}
