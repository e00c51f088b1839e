package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/retrans/internal/config"
	"github.com/five82/retrans/internal/job"
)

func TestCRFForWidthPicksResolutionTier(t *testing.T) {
	d := config.NewDefaults("/in", "/out", "")

	assert.Equal(t, int(config.DefaultCRFSD), d.CRFForWidth(1280))
	assert.Equal(t, int(config.DefaultCRFHD), d.CRFForWidth(1920))
	assert.Equal(t, int(config.DefaultCRFUHD), d.CRFForWidth(3840))
}

func TestValidateRejectsOutOfRangeCRF(t *testing.T) {
	d := config.NewDefaults("/in", "/out", "")
	d.CRFHD = 90

	err := d.Validate()
	require.Error(t, err)
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	d := config.NewDefaults("/in", "/out", "")
	d.Concurrency = 0

	err := d.Validate()
	require.Error(t, err)
}

func TestGetTempDirFallsBackToOutputDir(t *testing.T) {
	d := config.NewDefaults("/in", "/out", "")
	assert.Equal(t, "/out", d.GetTempDir())

	d.TempDir = "/scratch"
	assert.Equal(t, "/scratch", d.GetTempDir())
}

func TestJobConfigLeavesKeepSourceSentinels(t *testing.T) {
	d := config.NewDefaults("/in", "/out", "")
	cfg := d.JobConfig(1920, "/out/file.mp4")

	assert.Equal(t, job.KeepSource, cfg.Video.PixelFormat)
	assert.Equal(t, job.KeepSource, cfg.Audio.ChannelLayout)
	assert.Equal(t, job.KeepSource, cfg.Audio.SampleFormat)
	assert.Equal(t, int(config.DefaultCRFHD), cfg.Video.CRF)
	assert.Equal(t, "/out/file.mp4", cfg.OutputPath)
}
