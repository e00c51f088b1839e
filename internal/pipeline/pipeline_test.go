package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/codec/fakecodec"
	"github.com/five82/retrans/internal/pipeline"
)

func newVideoPipeline(t *testing.T, totalFrames int) *pipeline.StreamPipeline {
	t.Helper()
	adapter := fakecodec.New(fakecodec.Spec{})

	params := codec.EncoderParams{
		Kind:      codec.EncH264,
		OutStream: 0,
		TimeBase:  codec.NewRational(1, 1000),
		Width:     1280,
		Height:    720,
	}
	enc, err := adapter.OpenEncoder(context.Background(), params)
	require.NoError(t, err)

	dec, err := adapter.OpenDecoder(context.Background(), codec.StreamDescriptor{
		Kind:  codec.StreamVideo,
		Video: codec.VideoDescriptor{Width: 1280, Height: 720, PixelFormat: "yuv420p"},
	}, 1)
	require.NoError(t, err)

	cfg := pipeline.Config{
		InputStreamIndex:  0,
		OutputStreamIndex: 0,
		Required:          true,
		IsVideo:           true,
		TargetFPS:         codec.NewRational(24, 1),
		TotalFrames:       totalFrames,
		TargetWidth:       1280,
		TargetHeight:      720,
		TargetPixFmt:      "yuv420p",
	}
	return pipeline.New(adapter, cfg, dec, nil, enc, codec.NewRational(1, 1000), codec.NewRational(1, 1000), nil)
}

func TestPipelinePushProducesOnePacketPerFrame(t *testing.T) {
	p := newVideoPipeline(t, 3)

	for i := 0; i < 3; i++ {
		res, err := p.Push(context.Background(), codec.Packet{StreamIndex: 0, Data: []byte{0}, Duration: 1})
		require.NoError(t, err)
		require.Len(t, res.Packets, 1)
		assert.Equal(t, pipeline.Drained, res.Status)
	}
	assert.Equal(t, 3, p.VideoFrames())
}

func TestPipelineAbsorbsUnrelatedStreamIndex(t *testing.T) {
	p := newVideoPipeline(t, 3)

	res, err := p.Push(context.Background(), codec.Packet{StreamIndex: 7, Data: []byte{0}})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Absorbed, res.Status)
	assert.Equal(t, 0, p.VideoFrames())
}

func TestPipelineFlushMarksDone(t *testing.T) {
	p := newVideoPipeline(t, 1)

	res, err := p.Push(context.Background(), codec.Packet{StreamIndex: 0, Data: []byte{0}, Duration: 1})
	require.NoError(t, err)
	require.Len(t, res.Packets, 1)

	pkts, err := p.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pkts) // fakecodec's decoder has nothing buffered to drain
	assert.True(t, p.IsDone())
}

func TestPipelineTimestampsAreMonotonic(t *testing.T) {
	p := newVideoPipeline(t, 4)

	var lastDTS int64 = -1
	for i := 0; i < 4; i++ {
		res, err := p.Push(context.Background(), codec.Packet{StreamIndex: 0, Data: []byte{0}, Duration: 1})
		require.NoError(t, err)
		require.Len(t, res.Packets, 1)
		assert.Greater(t, res.Packets[0].DTS, lastDTS)
		lastDTS = res.Packets[0].DTS
	}
}
