package ffmpeg

// Static capability tables. A real ffmpeg build's actual codec/format list
// varies with how it was configured; these are the combinations this
// adapter has been exercised against, not every combination some build of
// ffmpeg might accept.

func (a *Adapter) SupportedContainers() []string {
	return []string{"mp4", "mov", "mkv", "webm", "avi", "mp3", "wav"}
}

func (a *Adapter) SupportedVideoCodecs(container string) []string {
	switch container {
	case "webm":
		return []string{"vp8", "vp9"}
	default:
		return []string{"h264", "h265", "vp9", "mjpeg", "prores"}
	}
}

func (a *Adapter) SupportedAudioCodecs(container string) []string {
	switch container {
	case "webm":
		return []string{"opus"}
	default:
		return []string{"aac", "opus", "mp3", "flac", "pcm_s16le", "pcm_s32le"}
	}
}

func (a *Adapter) SupportedPixelFormats(codec string) []string {
	switch codec {
	case "h264", "h265":
		return []string{"yuv420p", "yuv420p10le", "yuv444p"}
	case "vp9", "vp8":
		return []string{"yuv420p", "yuv420p10le"}
	case "prores":
		return []string{"yuv422p10le", "yuva444p10le"}
	case "mjpeg":
		return []string{"yuvj420p"}
	default:
		return nil
	}
}

func (a *Adapter) SupportedSampleRates(codec string) []int {
	switch codec {
	case "aac", "mp3":
		return []int{22050, 24000, 32000, 44100, 48000}
	case "opus":
		return []int{48000}
	case "flac", "pcm_s16le", "pcm_s32le":
		return []int{44100, 48000, 96000}
	default:
		return nil
	}
}

func (a *Adapter) SupportedChannelLayouts(codec string) []string {
	switch codec {
	case "opus":
		return []string{"mono", "stereo"}
	default:
		return []string{"mono", "stereo", "5.1", "7.1"}
	}
}
