package job_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/codec/fakecodec"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/job"
)

func videoAudioSpec() fakecodec.Spec {
	return fakecodec.Spec{
		Container: "mp4",

		VideoFrames:  48,
		VideoFPS:     codec.NewRational(24, 1),
		VideoWidth:   1280,
		VideoHeight:  720,
		VideoPixFmt:  "yuv420p",
		VideoCodecID: "h264",

		AudioTotalSamples: 48000 * 2,
		AudioFrameSize:    1024,
		AudioSampleRate:   48000,
		AudioChannels:     "stereo",
		AudioSampleFormat: "fltp",
		AudioCodecID:      "aac",
	}
}

func resolvedConfig() job.Config {
	return job.Config{
		Container: "mp4",
		Video: job.VideoSettings{
			Transcode:   true,
			Codec:       "h264",
			Width:       1280,
			Height:      720,
			PixelFormat: "yuv420p",
			CRF:         23,
		},
		Audio: job.AudioSettings{
			Transcode:     true,
			Codec:         "aac",
			ChannelLayout: "stereo",
			SampleFormat:  "fltp",
			SampleRate:    48000,
		},
		DecoderThreads: 1,
		EncoderThreads: 1,
		OutputPath:     "/out/job.mp4",
	}
}

type collectingSink struct {
	progress []control.Snapshot
	success  []string
	fails    []string
}

func (s *collectingSink) Progress(snap control.Snapshot) { s.progress = append(s.progress, snap) }
func (s *collectingSink) Success(id string)              { s.success = append(s.success, id) }
func (s *collectingSink) Fail(id string, kind codec.ErrorKind, msg string) {
	s.fails = append(s.fails, id)
}

func TestJobRunSucceedsAndEmitsSuccess(t *testing.T) {
	adapter := fakecodec.New(videoAudioSpec())
	rec := job.NewRecord(resolvedConfig(), "/in/video.mkv")
	sink := &collectingSink{}

	err := job.Run(context.Background(), adapter, rec, sink, nil)
	require.NoError(t, err)

	assert.Equal(t, job.Succeeded, rec.State)
	require.Len(t, sink.success, 1)
	assert.Equal(t, rec.ID, sink.success[0])
	assert.Empty(t, sink.fails)
}

func TestJobRunFailsWhenVideoStreamMissing(t *testing.T) {
	spec := videoAudioSpec()
	spec.VideoFrames = 0
	adapter := fakecodec.New(spec)
	rec := job.NewRecord(resolvedConfig(), "/in/audio-only.mkv")
	sink := &collectingSink{}

	err := job.Run(context.Background(), adapter, rec, sink, nil)
	require.Error(t, err)
	assert.Equal(t, job.Failed, rec.State)
	require.Len(t, sink.fails, 1)
	assert.NotEmpty(t, rec.FailKind)
}

func TestJobRunRespectsCancellation(t *testing.T) {
	adapter := fakecodec.New(videoAudioSpec())
	rec := job.NewRecord(resolvedConfig(), "/in/video.mkv")
	sink := &collectingSink{}

	tok := &control.AtomicToken{}
	tok.Cancel() // cancelled before the first burst runs

	err := job.Run(context.Background(), adapter, rec, sink, tok)
	require.NoError(t, err)
	assert.Equal(t, job.Cancelled, rec.State)
	assert.Empty(t, sink.success)
	assert.Empty(t, sink.fails)
}

func TestJobRunVideoOnly(t *testing.T) {
	spec := videoAudioSpec()
	spec.AudioTotalSamples = 0
	adapter := fakecodec.New(spec)

	cfg := resolvedConfig()
	cfg.Audio = job.AudioSettings{}

	rec := job.NewRecord(cfg, "/in/video-only.mkv")
	sink := &collectingSink{}

	err := job.Run(context.Background(), adapter, rec, sink, nil)
	require.NoError(t, err)
	assert.Equal(t, job.Succeeded, rec.State)
}
