// Package pipeline drives one kept input stream from input packet to muxed
// output packet: decoder, optional resampler (audio) or scaler (video),
// encoder, and the timestamp rebasing that happens just before a packet is
// handed to the muxer.
package pipeline

import (
	"context"
	"fmt"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/timestamp"
)

// FlushPhase is the end-of-stream flush state of one pipeline, advanced
// strictly forward by the flush protocol in (*StreamPipeline).Flush.
type FlushPhase int

const (
	Active FlushPhase = iota
	DecoderDrained
	ResamplerDrained
	EncoderDrained
	Done
)

func (p FlushPhase) String() string {
	switch p {
	case Active:
		return "active"
	case DecoderDrained:
		return "decoder-drained"
	case ResamplerDrained:
		return "resampler-drained"
	case EncoderDrained:
		return "encoder-drained"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// PushStatus is the outcome of feeding one input packet to a pipeline.
type PushStatus int

const (
	// Absorbed means the packet did not belong to this pipeline; the
	// caller should discard it (or route it to another pipeline).
	Absorbed PushStatus = iota
	// Drained means the packet was processed; zero or more muxer-ready
	// packets were produced.
	Drained
	// PipelineEnded means the underlying decoder reported end of stream
	// for this pipeline's input.
	PipelineEnded
)

// PushResult is returned by Push.
type PushResult struct {
	Status  PushStatus
	Packets []codec.Packet
}

// Config is the static, resolved-at-build-time configuration of one
// pipeline: target video dimensions/pixel format (post-resolve, no more
// "keep source" sentinels) or target audio rate/format/layout.
type Config struct {
	InputStreamIndex  int
	OutputStreamIndex int
	Required          bool // primary (best_stream-selected) streams are required

	// Video.
	IsVideo      bool
	TargetFPS    codec.Rational
	TotalFrames  int
	TargetWidth  int
	TargetHeight int
	TargetPixFmt string

	// Audio.
	OutSampleRate   int
	ExpectedSamples int64 // input duration * output sample rate, the audio analogue of TotalFrames
}

// StreamPipeline owns one decoder, an optional resampler (audio) or scaler
// calls (video), one encoder, and the counters invariant 3 of the data model
// requires: sample_offset for audio, a frame-index grid offset for video.
type StreamPipeline struct {
	cfg Config

	adapter   codec.Adapter
	decoder   codec.Decoder
	resampler codec.Resampler // nil for video
	encoder   codec.Encoder

	mapper *timestamp.Mapper

	flushing FlushPhase

	sampleOffset int64 // audio: cumulative samples submitted to the encoder
	frameOffset  int   // video: cumulative frames submitted to the encoder

	warnOnce func(format string, args ...any)
}

// New builds a StreamPipeline. warn is called for invariant-violation
// messages (TimestampMapper logs through it at most once per pipeline).
func New(adapter codec.Adapter, cfg Config, decoder codec.Decoder, resampler codec.Resampler, encoder codec.Encoder, encoderTB, writerTB codec.Rational, warn func(format string, args ...any)) *StreamPipeline {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &StreamPipeline{
		cfg:       cfg,
		adapter:   adapter,
		decoder:   decoder,
		resampler: resampler,
		encoder:   encoder,
		mapper:    timestamp.NewMapper(cfg.OutputStreamIndex, encoderTB, writerTB, warn),
		warnOnce:  warn,
	}
}

// InputStreamIndex is the container stream this pipeline consumes.
func (p *StreamPipeline) InputStreamIndex() int { return p.cfg.InputStreamIndex }

// IsDone reports whether this pipeline has completed its flush protocol.
func (p *StreamPipeline) IsDone() bool { return p.flushing == Done }

// Required reports whether a failure in this pipeline must fail the job.
func (p *StreamPipeline) Required() bool { return p.cfg.Required }

// VideoFrames returns the number of frames submitted to the encoder so far.
func (p *StreamPipeline) VideoFrames() int { return p.frameOffset }

// AudioSamples returns the cumulative sample offset (invariant 3).
func (p *StreamPipeline) AudioSamples() int64 { return p.sampleOffset }

// TotalFrames is the frame-index grid size computed for this video pipeline.
func (p *StreamPipeline) TotalFrames() int { return p.cfg.TotalFrames }

// ExpectedSamples is the audio analogue of TotalFrames: input duration times
// output sample rate, the denominator spec.md §4.5's audio_frac divides by.
func (p *StreamPipeline) ExpectedSamples() int64 { return p.cfg.ExpectedSamples }

// FPSHint is the target frame rate as a float, for the scheduler's burst
// boundary math (frameOffset / fps vs. the burst limit in seconds).
func (p *StreamPipeline) FPSHint() float64 {
	if p.cfg.TargetFPS.Den == 0 {
		return 0
	}
	return float64(p.cfg.TargetFPS.Num) / float64(p.cfg.TargetFPS.Den)
}

// OutSampleRate is the target audio sample rate, for the scheduler's burst
// boundary math (sample_offset / rate vs. the burst limit in seconds).
func (p *StreamPipeline) OutSampleRate() int { return p.cfg.OutSampleRate }

// Push feeds one input packet through decode -> (scale|resample) -> encode,
// returning any packets now ready for the muxer. Invariant 5: callers must
// not call Push again once a PipelineEnded/Done state has been observed.
func (p *StreamPipeline) Push(ctx context.Context, pkt codec.Packet) (PushResult, error) {
	if pkt.StreamIndex != p.cfg.InputStreamIndex {
		return PushResult{Status: Absorbed}, nil
	}
	if p.flushing != Active {
		return PushResult{}, codec.NewFail(codec.ErrDecoderError, "pipeline %d received input after flush began", p.cfg.InputStreamIndex)
	}

	if sig, err := p.decoder.Send(ctx, pkt); err != nil {
		return PushResult{}, codec.Annotate(err, "decoder send on stream %d", p.cfg.InputStreamIndex)
	} else if sig == codec.SignalNeedsDrain {
		return PushResult{}, codec.NewFail(codec.ErrDecoderError, "decoder on stream %d requires drain mid-stream", p.cfg.InputStreamIndex)
	}

	var out []codec.Packet
	ended := false

decodeLoop:
	for {
		frame, sig, err := p.decoder.Recv(ctx)
		if err != nil {
			return PushResult{}, codec.Annotate(err, "decoder recv on stream %d", p.cfg.InputStreamIndex)
		}
		switch sig {
		case codec.SignalNeedsMore:
			break decodeLoop
		case codec.SignalEndOfStream:
			ended = true
			break decodeLoop
		}

		if err := p.emitFrame(ctx, frame, &out); err != nil {
			return PushResult{}, err
		}
	}

	if ended {
		p.flushing = DecoderDrained
		return PushResult{Status: PipelineEnded, Packets: out}, nil
	}
	return PushResult{Status: Drained, Packets: out}, nil
}

// emitFrame runs one decoded Frame through scale-or-resample, assigns its
// output timestamp, submits it to the encoder, and appends any muxer-ready
// packets the encoder now yields to out.
func (p *StreamPipeline) emitFrame(ctx context.Context, frame codec.Frame, out *[]codec.Packet) error {
	if p.cfg.IsVideo {
		scaled, err := p.adapter.ScaleFrame(ctx, frame, p.cfg.TargetPixFmt, p.cfg.TargetWidth, p.cfg.TargetHeight)
		if err != nil {
			return codec.Annotate(err, "scale frame on stream %d", p.cfg.InputStreamIndex)
		}
		scaled.PTS = p.nextVideoPTS()
		return p.submitToEncoder(ctx, scaled, out)
	}

	if err := p.resampler.Push(ctx, frame); err != nil {
		return codec.Annotate(err, "resampler push on stream %d", p.cfg.InputStreamIndex)
	}
	required := p.encoder.RequiredFrameSamples()
	for {
		resampled, sig, err := p.resampler.PullExact(ctx, required)
		if err != nil {
			return codec.Annotate(err, "resampler pull on stream %d", p.cfg.InputStreamIndex)
		}
		if sig == codec.SignalNeedsMore || sig == codec.SignalEndOfStream {
			return nil
		}
		resampled.PTS = p.sampleOffset
		p.sampleOffset += int64(resampled.NbSamples)
		if err := p.submitToEncoder(ctx, resampled, out); err != nil {
			return err
		}
	}
}

// nextVideoPTS maps the current frame-index grid position to a tick count in
// the encoder's time base: logical pts (seconds) = frameOffset / targetFPS.
func (p *StreamPipeline) nextVideoPTS() int64 {
	tb := p.mapper.EncoderTimeBase()
	// seconds = frameOffset * fps.Den / fps.Num; ticks = seconds / tb.
	fps := p.cfg.TargetFPS
	num := int64(p.frameOffset) * fps.Den * tb.Den
	den := fps.Num * tb.Num
	p.frameOffset++
	if den == 0 {
		return 0
	}
	return num / den
}

func (p *StreamPipeline) submitToEncoder(ctx context.Context, frame codec.Frame, out *[]codec.Packet) error {
	if sig, err := p.encoder.Send(ctx, frame); err != nil {
		return codec.Annotate(err, "encoder send on stream %d", p.cfg.OutputStreamIndex)
	} else if sig == codec.SignalNeedsDrain {
		return codec.NewFail(codec.ErrEncoderError, "encoder on output stream %d requires drain mid-stream", p.cfg.OutputStreamIndex)
	}
	for {
		pkt, sig, err := p.encoder.Recv(ctx)
		if err != nil {
			return codec.Annotate(err, "encoder recv on output stream %d", p.cfg.OutputStreamIndex)
		}
		if sig == codec.SignalNeedsMore || sig == codec.SignalEndOfStream {
			return nil
		}
		p.mapper.Finalize(&pkt)
		*out = append(*out, pkt)
	}
}

// Flush runs the four-step end-of-stream protocol: send Null through
// decoder -> resampler -> encoder, draining everything each stage yields,
// then marks the pipeline Done. Safe to call once Push has returned
// PipelineEnded (decoder already drained) or directly from Active.
func (p *StreamPipeline) Flush(ctx context.Context) ([]codec.Packet, error) {
	var out []codec.Packet

	if p.flushing == Active {
		if _, err := p.decoder.Send(ctx, codec.Packet{Null: true}); err != nil {
			return nil, codec.Annotate(err, "decoder null-send on stream %d", p.cfg.InputStreamIndex)
		}
		for {
			frame, sig, err := p.decoder.Recv(ctx)
			if err != nil {
				return nil, codec.Annotate(err, "decoder drain on stream %d", p.cfg.InputStreamIndex)
			}
			if sig == codec.SignalEndOfStream {
				break
			}
			if sig == codec.SignalNeedsMore {
				continue
			}
			if err := p.emitFrame(ctx, frame, &out); err != nil {
				return nil, err
			}
		}
		p.flushing = DecoderDrained
	}

	if p.flushing == DecoderDrained {
		if p.resampler != nil {
			if err := p.resampler.Push(ctx, codec.Frame{Null: true}); err != nil {
				return nil, codec.Annotate(err, "resampler null-push on stream %d", p.cfg.InputStreamIndex)
			}
			required := p.encoder.RequiredFrameSamples()
			for {
				frame, sig, err := p.resampler.PullExact(ctx, required)
				if err != nil {
					return nil, codec.Annotate(err, "resampler drain on stream %d", p.cfg.InputStreamIndex)
				}
				if sig == codec.SignalEndOfStream {
					break
				}
				if sig == codec.SignalNeedsMore {
					continue
				}
				frame.PTS = p.sampleOffset
				p.sampleOffset += int64(frame.NbSamples)
				if err := p.submitToEncoder(ctx, frame, &out); err != nil {
					return nil, err
				}
			}
			// Short remainder frame: submit once at pts=sample_offset, do
			// not advance sample_offset further (open question 1).
			if remainder, ok, err := p.resampler.PullRemainder(ctx); err != nil {
				return nil, codec.Annotate(err, "resampler remainder on stream %d", p.cfg.InputStreamIndex)
			} else if ok {
				remainder.PTS = p.sampleOffset
				if err := p.submitToEncoder(ctx, remainder, &out); err != nil {
					return nil, err
				}
			}
		}
		p.flushing = ResamplerDrained
	}

	if p.flushing == ResamplerDrained {
		if sig, err := p.encoder.Send(ctx, codec.Frame{Null: true}); err != nil {
			return nil, codec.Annotate(err, "encoder null-send on stream %d", p.cfg.OutputStreamIndex)
		} else if sig == codec.SignalNeedsDrain {
			return nil, codec.NewFail(codec.ErrEncoderError, "encoder drain requested mid null-send on stream %d", p.cfg.OutputStreamIndex)
		}
		for {
			pkt, sig, err := p.encoder.Recv(ctx)
			if err != nil {
				return nil, codec.Annotate(err, "encoder drain on stream %d", p.cfg.OutputStreamIndex)
			}
			if sig == codec.SignalEndOfStream {
				break
			}
			if sig == codec.SignalNeedsMore {
				continue
			}
			p.mapper.Finalize(&pkt)
			out = append(out, pkt)
		}
		p.flushing = EncoderDrained
	}

	p.flushing = Done
	return out, nil
}

// Close releases the decoder, resampler, and encoder, best-effort.
func (p *StreamPipeline) Close() error {
	var firstErr error
	if err := p.decoder.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close decoder: %w", err)
	}
	if p.resampler != nil {
		if err := p.resampler.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close resampler: %w", err)
		}
	}
	if err := p.encoder.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close encoder: %w", err)
	}
	return firstErr
}
