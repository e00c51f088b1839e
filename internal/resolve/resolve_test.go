package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/codec/fakecodec"
	"github.com/five82/retrans/internal/job"
	"github.com/five82/retrans/internal/resolve"
)

func sampleStreams() (video, audio codec.StreamDescriptor) {
	video = codec.StreamDescriptor{
		Index: 0,
		Kind:  codec.StreamVideo,
		Video: codec.VideoDescriptor{
			Width: 1920, Height: 1080, PixelFormat: "yuv420p",
			FrameRate: codec.NewRational(24000, 1001),
		},
	}
	audio = codec.StreamDescriptor{
		Index: 1,
		Kind:  codec.StreamAudio,
		Audio: codec.AudioDescriptor{
			SampleRate: 48000, ChannelLayout: "stereo", SampleFormat: "fltp",
		},
	}
	return
}

func baseConfig() job.Config {
	return job.Config{
		Container: "mp4",
		Video: job.VideoSettings{
			Transcode: true,
			Codec:     "h264",
			CRF:       23,
		},
		Audio: job.AudioSettings{
			Transcode: true,
			Codec:     "aac",
		},
		OutputPath: "/tmp/out.mp4",
	}
}

func TestResolveFillsKeepSourceSentinels(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	video, audio := sampleStreams()

	resolved, err := resolve.Resolve(baseConfig(), adapter, &video, &audio)
	require.NoError(t, err)

	assert.Equal(t, 1920, resolved.Video.Width)
	assert.Equal(t, 1080, resolved.Video.Height)
	assert.Equal(t, "yuv420p", resolved.Video.PixelFormat)
	assert.Equal(t, 48000, resolved.Audio.SampleRate)
	assert.Equal(t, "stereo", resolved.Audio.ChannelLayout)
}

func TestResolveIsIdempotent(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	video, audio := sampleStreams()

	once, err := resolve.Resolve(baseConfig(), adapter, &video, &audio)
	require.NoError(t, err)

	twice, err := resolve.Resolve(once.Config, adapter, &video, &audio)
	require.NoError(t, err)

	assert.Equal(t, once.Config, twice.Config)
}

func TestResolveRejectsUnsupportedContainer(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	video, audio := sampleStreams()

	cfg := baseConfig()
	cfg.Container = "asf"

	_, err := resolve.Resolve(cfg, adapter, &video, &audio)
	require.Error(t, err)
	var fail *codec.Fail
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, codec.ErrConfigInvalid, fail.Kind)
}

func TestResolveRejectsVideoTranscodeWithoutVideoStream(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	_, audio := sampleStreams()

	_, err := resolve.Resolve(baseConfig(), adapter, nil, &audio)
	require.Error(t, err)
}

func TestResolveRejectsUnsupportedCRF(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	video, audio := sampleStreams()

	cfg := baseConfig()
	cfg.Video.CRF = 99

	_, err := resolve.Resolve(cfg, adapter, &video, &audio)
	require.Error(t, err)
}

func TestResolveRejectsUnsupportedSampleRate(t *testing.T) {
	adapter := fakecodec.New(fakecodec.Spec{})
	video, audio := sampleStreams()
	audio.Audio.SampleRate = 22050

	cfg := baseConfig()
	cfg.Audio.SampleRate = 22050

	_, err := resolve.Resolve(cfg, adapter, &video, &audio)
	require.Error(t, err)
	var fail *codec.Fail
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, codec.ErrUnsupportedCombo, fail.Kind)
}
