// Package config provides the CLI's application-level defaults: where to
// read/write/log, how many jobs run concurrently, and the default
// encode policy new jobs are built from.
package config

import (
	"fmt"
	"runtime"

	"github.com/five82/retrans/internal/job"
)

// Default constants
const (
	// DefaultCRFSD is the default CRF for SD content (<1920 width).
	DefaultCRFSD uint8 = 25

	// DefaultCRFHD is the default CRF for HD content (>=1920, <3840 width).
	DefaultCRFHD uint8 = 27

	// DefaultCRFUHD is the default CRF for UHD content (>=3840 width).
	DefaultCRFUHD uint8 = 29

	// HDWidthThreshold is the minimum width for HD resolution.
	HDWidthThreshold int = 1920

	// UHDWidthThreshold is the minimum width for UHD resolution.
	UHDWidthThreshold int = 3840

	// DefaultContainer is the muxer container new jobs target.
	DefaultContainer = "mp4"

	// DefaultVideoCodec is the video codec new jobs target.
	DefaultVideoCodec = "h265"

	// DefaultAudioCodec is the audio codec new jobs target.
	DefaultAudioCodec = "aac"
)

// DefaultConcurrency returns a conservative starting cap for
// ConcurrencyController: one job per two logical CPUs, at least 1. Each
// job already drives its own decode/resample/encode chain, so one job
// can keep more than one core busy.
func DefaultConcurrency() int {
	if n := runtime.NumCPU() / 2; n > 0 {
		return n
	}
	return 1
}

// Defaults holds the CLI's application-level configuration: everything
// that's true for the whole run rather than scoped to one job.
type Defaults struct {
	InputDir  string
	OutputDir string
	LogDir    string
	TempDir   string // optional, defaults to OutputDir

	Concurrency int

	Container  string
	VideoCodec string
	AudioCodec string

	CRFSD  uint8
	CRFHD  uint8
	CRFUHD uint8

	Verbose bool
	NoLog   bool
}

// NewDefaults creates Defaults with the package's default policy.
func NewDefaults(inputDir, outputDir, logDir string) *Defaults {
	return &Defaults{
		InputDir:    inputDir,
		OutputDir:   outputDir,
		LogDir:      logDir,
		Concurrency: DefaultConcurrency(),
		Container:   DefaultContainer,
		VideoCodec:  DefaultVideoCodec,
		AudioCodec:  DefaultAudioCodec,
		CRFSD:       DefaultCRFSD,
		CRFHD:       DefaultCRFHD,
		CRFUHD:      DefaultCRFUHD,
	}
}

// Validate checks the configuration for errors.
func (d *Defaults) Validate() error {
	if d.CRFSD > 51 {
		return fmt.Errorf("crf-sd must be 0-51, got %d", d.CRFSD)
	}
	if d.CRFHD > 51 {
		return fmt.Errorf("crf-hd must be 0-51, got %d", d.CRFHD)
	}
	if d.CRFUHD > 51 {
		return fmt.Errorf("crf-uhd must be 0-51, got %d", d.CRFUHD)
	}
	if d.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", d.Concurrency)
	}
	return nil
}

// GetTempDir returns the temp directory, falling back to OutputDir if not set.
func (d *Defaults) GetTempDir() string {
	if d.TempDir != "" {
		return d.TempDir
	}
	return d.OutputDir
}

// CRFForWidth returns the appropriate CRF value based on video width.
func (d *Defaults) CRFForWidth(width int) int {
	switch {
	case width >= UHDWidthThreshold:
		return int(d.CRFUHD)
	case width >= HDWidthThreshold:
		return int(d.CRFHD)
	default:
		return int(d.CRFSD)
	}
}

// JobConfig builds the job.Config a new job starts from: video/audio both
// set to transcode, codec/container from Defaults, CRF picked by the
// input's width, and every other field left at job.KeepSource so
// internal/resolve fills it in from the input stream.
func (d *Defaults) JobConfig(inputWidth int, outputPath string) job.Config {
	return job.Config{
		Container: d.Container,
		Video: job.VideoSettings{
			Transcode:   true,
			Codec:       d.VideoCodec,
			PixelFormat: job.KeepSource,
			CRF:         d.CRFForWidth(inputWidth),
		},
		Audio: job.AudioSettings{
			Transcode:     true,
			Codec:         d.AudioCodec,
			ChannelLayout: job.KeepSource,
			SampleFormat:  job.KeepSource,
		},
		OutputPath: outputPath,
		TempDir:    d.GetTempDir(),
	}
}
