package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/five82/retrans/internal/codec"
)

// probeFormat is ffprobe's `-show_format -show_streams -of json` shape,
// trimmed to the fields Streams() needs.
type probeFormat struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PixFmt        string `json:"pix_fmt"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	RFrameRate    string `json:"r_frame_rate"`
	TimeBase      string `json:"time_base"`
	Duration      string `json:"duration"`
	SampleRate    string `json:"sample_rate"`
	ChannelLayout string `json:"channel_layout"`
	SampleFmt     string `json:"sample_fmt"`
}

func (a *Adapter) probe(ctx context.Context, path string) (probeFormat, error) {
	cmd := a.ffprobeCmd(
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return probeFormat{}, codec.NewFail(codec.ErrOpenIO, "ffprobe %s: %v (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	var out probeFormat
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return probeFormat{}, codec.NewFail(codec.ErrOpenFormat, "ffprobe output for %s: %v", path, err)
	}
	return out, nil
}

func toStreamDescriptors(pf probeFormat) []codec.StreamDescriptor {
	descs := make([]codec.StreamDescriptor, 0, len(pf.Streams))
	for _, s := range pf.Streams {
		desc := codec.StreamDescriptor{
			Index:        s.Index,
			CodecID:      s.CodecName,
			TimeBase:     parseRational(s.TimeBase, codec.NewRational(1, 1000)),
			DurationSecs: parseFloat(s.Duration, parseFloat(pf.Format.Duration, 0)),
		}
		switch s.CodecType {
		case "video":
			desc.Kind = codec.StreamVideo
			fps := parseRational(s.AvgFrameRate, codec.Rational{})
			if fps.Num == 0 {
				fps = parseRational(s.RFrameRate, codec.NewRational(24, 1))
			}
			desc.Video = codec.VideoDescriptor{
				Width:       s.Width,
				Height:      s.Height,
				PixelFormat: s.PixFmt,
				FrameRate:   fps,
			}
		case "audio":
			desc.Kind = codec.StreamAudio
			rate, _ := strconv.Atoi(s.SampleRate)
			desc.Audio = codec.AudioDescriptor{
				SampleRate:    rate,
				ChannelLayout: s.ChannelLayout,
				SampleFormat:  s.SampleFmt,
			}
		case "subtitle":
			desc.Kind = codec.StreamSubtitle
		default:
			desc.Kind = codec.StreamOther
		}
		descs = append(descs, desc)
	}
	return descs
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

// parseRational parses ffprobe's "num/den" rational strings (time_base,
// r_frame_rate, avg_frame_rate).
func parseRational(s string, fallback codec.Rational) codec.Rational {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 {
		return fallback
	}
	num, err1 := strconv.ParseInt(parts[0], 10, 64)
	den, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || den == 0 {
		return fallback
	}
	return codec.NewRational(num, den)
}
