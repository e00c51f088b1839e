package ffmpeg

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/retrans/internal/codec"
)

// reader demuxes by first asking ffprobe for the exact packet index (size,
// pts, dts, stream) in file order, then lazily opening one "-c copy -f
// data" remux pipe per stream to pull that stream's raw elementary bytes,
// sliced according to the sizes ffprobe already reported. This sidesteps
// writing a muxed-container parser: ffprobe already parsed the container,
// and "-c copy -f data" never re-encodes, so the bytes ffmpeg emits are
// exactly the bitstream ffprobe indexed.
type reader struct {
	adapter *Adapter
	path    string

	streams []codec.StreamDescriptor
	packets []packetMeta
	pos     int

	bodies map[int]*streamBody
}

type packetMeta struct {
	streamIndex int
	pts         *int64
	dts         int64
	duration    int64
	size        int
	keyframe    bool
}

type streamBody struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
}

type probePacket struct {
	StreamIndex int    `json:"stream_index"`
	Pts         string `json:"pts"`
	Dts         string `json:"dts"`
	Duration    string `json:"duration"`
	Size        string `json:"size"`
	Flags       string `json:"flags"`
}

type probePacketsDoc struct {
	Packets []probePacket `json:"packets"`
}

func (a *Adapter) OpenReader(ctx context.Context, path string) (codec.Reader, error) {
	pf, err := a.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := a.ffprobeCmd(
		"-v", "error",
		"-print_format", "json",
		"-show_packets",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, codec.NewFail(codec.ErrOpenIO, "ffprobe -show_packets %s: %v", path, err)
	}
	var doc probePacketsDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, codec.NewFail(codec.ErrOpenFormat, "ffprobe packet index for %s: %v", path, err)
	}

	packets := make([]packetMeta, 0, len(doc.Packets))
	for _, p := range doc.Packets {
		size, err := strconv.Atoi(p.Size)
		if err != nil {
			continue
		}
		meta := packetMeta{
			streamIndex: p.StreamIndex,
			dts:         int64(parseFloat(p.Dts, 0)),
			duration:    int64(parseFloat(p.Duration, 0)),
			size:        size,
			keyframe:    strings.Contains(p.Flags, "K"),
		}
		if pts := parseFloat(p.Pts, -1); pts >= 0 {
			v := int64(pts)
			meta.pts = &v
		}
		packets = append(packets, meta)
	}

	return &reader{
		adapter: a,
		path:    path,
		streams: toStreamDescriptors(pf),
		packets: packets,
		bodies:  make(map[int]*streamBody),
	}, nil
}

func (r *reader) Streams() []codec.StreamDescriptor { return r.streams }

func (r *reader) BestStream(kind codec.StreamKind) (int, bool) {
	best := -1
	for _, s := range r.streams {
		if s.Kind != kind {
			continue
		}
		if best == -1 {
			best = s.Index
			continue
		}
		if kind == codec.StreamVideo && s.Video.Width*s.Video.Height > 0 {
			best = s.Index
		}
	}
	return best, best != -1
}

func (r *reader) ReadPacket(ctx context.Context) (codec.Packet, bool, error) {
	if r.pos >= len(r.packets) {
		return codec.Packet{}, false, nil
	}
	meta := r.packets[r.pos]
	r.pos++

	body, err := r.bodyFor(ctx, meta.streamIndex)
	if err != nil {
		return codec.Packet{}, false, err
	}

	data := make([]byte, meta.size)
	if _, err := io.ReadFull(body.r, data); err != nil {
		return codec.Packet{}, false, codec.NewFail(codec.ErrReadIO, "stream %d: %v", meta.streamIndex, err)
	}

	pkt := codec.Packet{
		Data:        data,
		DTS:         meta.dts,
		Duration:    meta.duration,
		StreamIndex: meta.streamIndex,
	}
	if meta.pts != nil {
		pkt.PTS = meta.pts
	}
	if meta.keyframe {
		pkt.SideData = map[string][]byte{"keyframe": {1}}
	}
	return pkt, true, nil
}

func (r *reader) bodyFor(ctx context.Context, streamIndex int) (*streamBody, error) {
	if b, ok := r.bodies[streamIndex]; ok {
		return b, nil
	}

	cmd := r.adapter.ffmpegCmd(
		"-v", "error",
		"-i", r.path,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-c", "copy",
		"-f", "data",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, codec.NewFail(codec.ErrOpenIO, "stream %d: %v", streamIndex, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, codec.NewFail(codec.ErrOpenIO, "stream %d: %v", streamIndex, err)
	}

	b := &streamBody{cmd: cmd, stdout: stdout, r: bufio.NewReaderSize(stdout, 1<<20)}
	r.bodies[streamIndex] = b
	return b, nil
}

func (r *reader) Seek(ctx context.Context, streamIndex int, ptsInStreamBase int64, dir codec.SeekDirection) error {
	return codec.NewFail(codec.ErrSeek, "ffmpeg reader: seek not supported, pipeline reads forward only")
}

func (r *reader) Close() error {
	for _, b := range r.bodies {
		_ = b.stdout.Close()
		_ = b.cmd.Wait()
	}
	return nil
}
