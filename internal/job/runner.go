package job

import (
	"context"
	"os"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/pipeline"
	"github.com/five82/retrans/internal/schedule"
	"github.com/five82/retrans/internal/timestamp"
	"github.com/five82/retrans/internal/util"
)

// Run takes one Prepared Record from an unopened input straight through to
// a muxed, closed output, emitting zero or more coalesced Progress events on
// sink and then exactly one terminal event (Success or Fail); a cancelled
// job ends in the Cancelled state without emitting Success or Fail.
// rec.Config must already be resolved (see internal/resolve) — no
// KeepSource sentinels may remain.
func Run(ctx context.Context, adapter codec.Adapter, rec *Record, sink control.Sink, cancel control.CancelToken) error {
	if sink == nil {
		sink = control.NullSink{}
	}
	if cancel == nil {
		cancel = control.NoCancel{}
	}

	rec.State = Running
	rec.Started = timeNow()

	reader, err := adapter.OpenReader(ctx, rec.InputPath)
	if err != nil {
		return fail(rec, sink, codec.Annotate(err, "open reader"))
	}
	defer reader.Close()

	// Write to a staged temp path and rename into place on success, so a job
	// that fails or is cancelled mid-mux never leaves a partial file at
	// OutputPath. A staged file orphaned by a crash is swept on the next
	// run's startup (see cmd/retrans's CleanupStaleTempFiles call).
	// Skipped when the job carries no TempDir (e.g. tests).
	writePath := rec.OutputPath
	staged := false
	if rec.Config.TempDir != "" {
		util.CheckDiskSpace(rec.Config.TempDir, nil)
		writePath, err = util.CreateTempFilePath(rec.Config.TempDir, "retrans-job", rec.Config.Container)
		if err != nil {
			return fail(rec, sink, codec.Annotate(err, "allocate staged output path"))
		}
		staged = true
	}

	writer, err := adapter.OpenWriter(ctx, writePath, rec.Config.Container)
	if err != nil {
		return fail(rec, sink, codec.Annotate(err, "open writer"))
	}
	defer writer.Close()

	var videoPipe, audioPipe *pipeline.StreamPipeline

	if rec.Config.Video.Transcode {
		idx, ok := reader.BestStream(codec.StreamVideo)
		if !ok {
			return fail(rec, sink, codec.NewFail(codec.ErrOpenFormat, "no video stream to transcode"))
		}
		desc := findStream(reader, idx)
		p, err := buildVideoPipeline(ctx, adapter, writer, rec.Config.Video, rec.Config.EncoderThreads, rec.Config.DecoderThreads, desc)
		if err != nil {
			return fail(rec, sink, err)
		}
		videoPipe = p
		defer videoPipe.Close()
	}

	if rec.Config.Audio.Transcode {
		idx, ok := reader.BestStream(codec.StreamAudio)
		if !ok {
			return fail(rec, sink, codec.NewFail(codec.ErrOpenFormat, "no audio stream to transcode"))
		}
		desc := findStream(reader, idx)
		p, err := buildAudioPipeline(ctx, adapter, writer, rec.Config.Audio, rec.Config.EncoderThreads, rec.Config.DecoderThreads, desc)
		if err != nil {
			return fail(rec, sink, err)
		}
		audioPipe = p
		defer audioPipe.Close()
	}

	if err := writer.WriteHeader(ctx); err != nil {
		return fail(rec, sink, codec.Annotate(err, "write header"))
	}

	sched := schedule.New(reader, writer, videoPipe, audioPipe, cancel)
	cancelled, err := sched.Run(ctx, func() {
		sink.Progress(control.Snapshot{JobID: rec.ID, Value: sched.Progress()})
	})
	if err != nil {
		// write_trailer is still attempted so the container isn't left
		// truncated mid-box, even though the job itself failed.
		_ = writer.WriteTrailer(ctx)
		return fail(rec, sink, err)
	}

	if cancelled {
		_ = writer.WriteTrailer(ctx)
		rec.State = Cancelled
		rec.Finished = timeNow()
		return nil
	}

	if err := writer.WriteTrailer(ctx); err != nil {
		return fail(rec, sink, codec.Annotate(err, "write trailer"))
	}

	if staged {
		if err := writer.Close(); err != nil {
			return fail(rec, sink, codec.Annotate(err, "close staged writer"))
		}
		if err := os.Rename(writePath, rec.OutputPath); err != nil {
			return fail(rec, sink, codec.Annotate(err, "rename staged output into place"))
		}
	}

	rec.State = Succeeded
	rec.Finished = timeNow()
	sink.Success(rec.ID)
	return nil
}

func fail(rec *Record, sink control.Sink, err error) error {
	rec.State = Failed
	rec.Finished = timeNow()
	kind := codec.ErrDecoderError
	if f, ok := errAsFail(err); ok {
		kind = f.Kind
	}
	rec.FailKind = string(kind)
	rec.FailMsg = err.Error()
	sink.Fail(rec.ID, kind, err.Error())
	return err
}

func errAsFail(err error) (*codec.Fail, bool) {
	for err != nil {
		if f, ok := err.(*codec.Fail); ok {
			return f, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

func findStream(reader codec.Reader, idx int) codec.StreamDescriptor {
	for _, d := range reader.Streams() {
		if d.Index == idx {
			return d
		}
	}
	return codec.StreamDescriptor{}
}

func buildVideoPipeline(ctx context.Context, adapter codec.Adapter, writer codec.Writer, v VideoSettings, encThreads, decThreads int, desc codec.StreamDescriptor) (*pipeline.StreamPipeline, error) {
	fps := desc.Video.FrameRate
	if fps.Den == 0 {
		fps = codec.NewRational(24, 1)
	}
	totalFrames := int(desc.DurationSecs*float64(fps.Num)/float64(fps.Den) + 0.5)

	requestedTB := timestamp.ChooseEncoderTimeBase(true, fps, 0)

	params := encoderParamsForVideo(v, desc, encThreads)
	outIdx, actualTB, err := writer.AddStream(params, requestedTB)
	if err != nil {
		return nil, codec.Annotate(err, "add video stream")
	}
	params.OutStream = outIdx
	params.TimeBase = actualTB

	decoder, err := adapter.OpenDecoder(ctx, desc, decThreads)
	if err != nil {
		return nil, codec.Annotate(err, "open video decoder")
	}
	encoder, err := adapter.OpenEncoder(ctx, params)
	if err != nil {
		return nil, codec.Annotate(err, "open video encoder")
	}

	cfg := pipeline.Config{
		InputStreamIndex:  desc.Index,
		OutputStreamIndex: outIdx,
		Required:          true,
		IsVideo:           true,
		TargetFPS:         fps,
		TotalFrames:       totalFrames,
		TargetWidth:       v.Width,
		TargetHeight:      v.Height,
		TargetPixFmt:      v.PixelFormat,
	}
	return pipeline.New(adapter, cfg, decoder, nil, encoder, requestedTB, actualTB, nil), nil
}

func buildAudioPipeline(ctx context.Context, adapter codec.Adapter, writer codec.Writer, a AudioSettings, encThreads, decThreads int, desc codec.StreamDescriptor) (*pipeline.StreamPipeline, error) {
	requestedTB := timestamp.ChooseEncoderTimeBase(false, codec.Rational{}, a.SampleRate)

	params := encoderParamsForAudio(a, encThreads)
	outIdx, actualTB, err := writer.AddStream(params, requestedTB)
	if err != nil {
		return nil, codec.Annotate(err, "add audio stream")
	}
	params.OutStream = outIdx
	params.TimeBase = actualTB

	decoder, err := adapter.OpenDecoder(ctx, desc, decThreads)
	if err != nil {
		return nil, codec.Annotate(err, "open audio decoder")
	}
	resampler, err := adapter.OpenResampler(ctx, desc.Audio.ChannelLayout, desc.Audio.SampleFormat, desc.Audio.SampleRate, a.ChannelLayout, a.SampleFormat, a.SampleRate)
	if err != nil {
		return nil, codec.Annotate(err, "open resampler")
	}
	encoder, err := adapter.OpenEncoder(ctx, params)
	if err != nil {
		return nil, codec.Annotate(err, "open audio encoder")
	}

	cfg := pipeline.Config{
		InputStreamIndex:  desc.Index,
		OutputStreamIndex: outIdx,
		Required:          true,
		IsVideo:           false,
		OutSampleRate:     a.SampleRate,
		ExpectedSamples:   int64(desc.DurationSecs*float64(a.SampleRate) + 0.5),
	}
	return pipeline.New(adapter, cfg, decoder, resampler, encoder, requestedTB, actualTB, nil), nil
}

func encoderParamsForVideo(v VideoSettings, desc codec.StreamDescriptor, threads int) codec.EncoderParams {
	p := codec.EncoderParams{
		Kind:        videoEncoderKind(v.Codec),
		ThreadHint:  threads,
		Width:       v.Width,
		Height:      v.Height,
		PixelFormat: v.PixelFormat,
	}
	if p.Kind == codec.EncH264 || p.Kind == codec.EncH265 {
		p.CRF = v.CRF
	}
	if p.Kind == codec.EncH265 {
		p = codec.DefaultH265Params(p)
	}
	return p
}

func encoderParamsForAudio(a AudioSettings, threads int) codec.EncoderParams {
	return codec.EncoderParams{
		Kind:          audioEncoderKind(a.Codec),
		ThreadHint:    threads,
		SampleRate:    a.SampleRate,
		SampleFormat:  a.SampleFormat,
		ChannelLayout: a.ChannelLayout,
	}
}

func videoEncoderKind(name string) codec.EncoderKind {
	switch name {
	case "h264":
		return codec.EncH264
	case "h265", "hevc":
		return codec.EncH265
	case "vp8":
		return codec.EncVP8
	case "vp9":
		return codec.EncVP9
	case "mjpeg":
		return codec.EncMJPEG
	case "png":
		return codec.EncPNG
	case "prores":
		return codec.EncProRes
	default:
		return codec.EncoderKind(name)
	}
}

func audioEncoderKind(name string) codec.EncoderKind {
	switch name {
	case "aac":
		return codec.EncAAC
	case "opus":
		return codec.EncOpus
	case "mp3":
		return codec.EncMP3
	case "flac":
		return codec.EncFLAC
	case "pcm_s16le":
		return codec.EncPCMS16LE
	case "pcm_s32le":
		return codec.EncPCMS32LE
	default:
		return codec.EncoderKind(name)
	}
}
