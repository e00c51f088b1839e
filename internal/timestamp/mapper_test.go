package timestamp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/timestamp"
)

func TestChooseEncoderTimeBaseVideoIntegerMillis(t *testing.T) {
	tb := timestamp.ChooseEncoderTimeBase(true, codec.NewRational(25, 1), 0)
	assert.Equal(t, codec.NewRational(1, 1000), tb)
}

func TestChooseEncoderTimeBaseVideoFractionalFPS(t *testing.T) {
	// 24000/1001 * 1000 is not an integer, so the mapper asks for a tick
	// exactly matching the frame period instead.
	fps := codec.NewRational(24000, 1001)
	tb := timestamp.ChooseEncoderTimeBase(true, fps, 0)
	assert.Equal(t, codec.NewRational(1001, 24000), tb)
}

func TestChooseEncoderTimeBaseAudio(t *testing.T) {
	tb := timestamp.ChooseEncoderTimeBase(false, codec.Rational{}, 48000)
	assert.Equal(t, codec.NewRational(1, 48000), tb)
}

func TestMapperRescalesIntoWriterTimeBase(t *testing.T) {
	m := timestamp.NewMapper(0, codec.NewRational(1, 1000), codec.NewRational(1, 90000), nil)

	pts := int64(40) // 40ms
	pkt := codec.Packet{PTS: &pts, DTS: 40, Duration: 40}
	m.Finalize(&pkt)

	assert.Equal(t, int64(3600), pkt.DTS) // 40ms @ 90kHz
	require.NotNil(t, pkt.PTS)
	assert.Equal(t, int64(3600), *pkt.PTS)
	assert.Equal(t, int64(3600), pkt.Duration)
}

func TestMapperForcesMonotonicDTS(t *testing.T) {
	warned := 0
	m := timestamp.NewMapper(1, codec.NewRational(1, 1000), codec.NewRational(1, 1000), func(string, ...any) { warned++ })

	first := codec.Packet{DTS: 100, Duration: 40}
	m.Finalize(&first)
	assert.Equal(t, int64(100), first.DTS)

	// A non-monotonic DTS (e.g. a reordered B-frame packet) must be forced
	// forward by exactly one tick, and only warn once.
	second := codec.Packet{DTS: 90, Duration: 40}
	m.Finalize(&second)
	assert.Equal(t, int64(101), second.DTS)
	assert.Equal(t, 1, warned)

	third := codec.Packet{DTS: 95, Duration: 40}
	m.Finalize(&third)
	assert.Equal(t, int64(102), third.DTS)
	assert.Equal(t, 1, warned, "warn callback must fire at most once")
}

func TestMapperClampsPTSNotBelowDTS(t *testing.T) {
	m := timestamp.NewMapper(0, codec.NewRational(1, 1000), codec.NewRational(1, 1000), nil)

	pts := int64(50)
	pkt := codec.Packet{PTS: &pts, DTS: 100, Duration: 40}
	m.Finalize(&pkt)

	require.NotNil(t, pkt.PTS)
	assert.Equal(t, pkt.DTS, *pkt.PTS)
}
