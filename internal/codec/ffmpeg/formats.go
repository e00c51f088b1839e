package ffmpeg

// codecInputFormat maps a probed codec_name to the ffmpeg demuxer/decoder
// format name that reads that codec's raw elementary bitstream back in
// (the inverse of the "-c copy -f data" dump reader.go produces it with).
func codecInputFormat(codecID string) string {
	switch codecID {
	case "h264":
		return "h264"
	case "hevc", "h265":
		return "hevc"
	case "vp8":
		return "vp8"
	case "vp9":
		return "vp9"
	case "av1":
		return "av1"
	case "mjpeg":
		return "mjpeg"
	case "aac":
		return "aac"
	case "mp3":
		return "mp3"
	case "flac":
		return "flac"
	case "opus":
		return "ogg" // ffmpeg demuxes raw Opus packets via an Ogg wrapper
	default:
		return "data"
	}
}

// bytesPerPixel is an approximation good enough to size a rawvideo frame
// buffer for the pixel formats SupportedPixelFormats advertises.
func bytesPerPixel(pixFmt string) float64 {
	switch pixFmt {
	case "yuv420p", "yuvj420p":
		return 1.5
	case "yuv420p10le":
		return 3
	case "yuv444p":
		return 3
	case "yuv422p10le":
		return 4
	case "yuva444p10le":
		return 8
	default:
		return 1.5
	}
}

// pcmBytesPerSample is the interleaved-frame byte width for the raw PCM
// sample formats this adapter moves decoded/resampled audio through.
func pcmBytesPerSample(sampleFormat string) int {
	switch sampleFormat {
	case "s32", "s32le", "flt", "fltp":
		return 4
	case "dbl", "dblp":
		return 8
	default:
		return 2 // s16/s16le
	}
}

// channelCount is a minimal channel-layout name table; real ffmpeg accepts
// far more layouts, but every encoder/decoder path in this adapter only
// ever requests one of these.
func channelCount(layout string) int {
	switch layout {
	case "mono":
		return 1
	case "5.1":
		return 6
	case "7.1":
		return 8
	default:
		return 2 // stereo
	}
}
