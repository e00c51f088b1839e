// Package main provides the CLI entry point for retrans.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/five82/retrans/internal/codec"
	"github.com/five82/retrans/internal/codec/ffmpeg"
	"github.com/five82/retrans/internal/concurrency"
	"github.com/five82/retrans/internal/config"
	"github.com/five82/retrans/internal/control"
	"github.com/five82/retrans/internal/discovery"
	"github.com/five82/retrans/internal/job"
	"github.com/five82/retrans/internal/logging"
	"github.com/five82/retrans/internal/reporter"
	"github.com/five82/retrans/internal/resolve"
	"github.com/five82/retrans/internal/util"
	"github.com/five82/retrans/internal/verify"
)

const (
	appName    = "retrans"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "transcode":
		err = runTranscode(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - batch media transcoder

Usage:
  %s <command> [options]

Commands:
  transcode   Transcode a single input file
  batch       Transcode every job-config JSON file (or input directory), N at a time
  version     Print version information
  help        Show this help message

Run '%s transcode --help' or '%s batch --help' for command options.
`, appName, appName, appName, appName)
}

type commonArgs struct {
	container  string
	videoCodec string
	audioCodec string
	crf        int
	logDir     string
	verbose    bool
	noLog      bool
}

func bindCommonFlags(fs *flag.FlagSet, c *commonArgs) {
	fs.StringVar(&c.container, "container", config.DefaultContainer, "Output container")
	fs.StringVar(&c.videoCodec, "video-codec", config.DefaultVideoCodec, "Output video codec")
	fs.StringVar(&c.audioCodec, "audio-codec", config.DefaultAudioCodec, "Output audio codec")
	fs.IntVar(&c.crf, "crf", 0, "CRF quality (0 = pick by resolution)")
	fs.StringVar(&c.logDir, "log-dir", "", "Log directory (defaults to retrans's XDG state dir)")
	fs.BoolVar(&c.verbose, "v", false, "Enable verbose logging")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&c.noLog, "no-log", false, "Disable log file creation")
}

func setupLogging(c commonArgs) (*logging.Logger, error) {
	logDir := c.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	return logging.Setup(logDir, c.verbose, c.noLog, os.Args)
}

func buildDefaults(c commonArgs, inputDir, outputDir, logDir string) *config.Defaults {
	d := config.NewDefaults(inputDir, outputDir, logDir)
	d.Container = c.container
	d.VideoCodec = c.videoCodec
	d.AudioCodec = c.audioCodec
	d.Verbose = c.verbose
	d.NoLog = c.noLog
	if c.crf != 0 {
		d.CRFSD, d.CRFHD, d.CRFUHD = uint8(c.crf), uint8(c.crf), uint8(c.crf)
	}
	return d
}

// jobOverrides carries per-job settings a caller pins explicitly instead of
// leaving them at job.KeepSource for internal/resolve to fill from the
// input stream: transcode's --width/--height/--sample-rate/--channel-layout
// flags, or a batch job-config's equivalent JSON fields.
type jobOverrides struct {
	width         int
	height        int
	crf           int
	sampleRate    int
	channelLayout string
}

func runTranscode(args []string) error {
	var c commonArgs
	var input, output string
	var ov jobOverrides

	fs := flag.NewFlagSet("transcode", flag.ExitOnError)
	fs.StringVar(&input, "i", "", "Input file")
	fs.StringVar(&input, "input", "", "Input file")
	fs.StringVar(&output, "o", "", "Output file")
	fs.StringVar(&output, "output", "", "Output file")
	fs.IntVar(&ov.width, "width", 0, "Output video width (0 = keep source)")
	fs.IntVar(&ov.height, "height", 0, "Output video height (0 = keep source)")
	fs.IntVar(&ov.sampleRate, "sample-rate", 0, "Output audio sample rate (0 = keep source)")
	fs.StringVar(&ov.channelLayout, "channel-layout", "", "Output audio channel layout, e.g. mono/stereo/5.1 (empty = keep source)")
	bindCommonFlags(fs, &c)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" || output == "" {
		return fmt.Errorf("both -i/--input and -o/--output are required")
	}
	ov.crf = c.crf

	inputPath, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	outputPath, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if err := util.EnsureDirectoryWritable(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("output directory not writable: %w", err)
	}

	logger, err := setupLogging(c)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	defaults := buildDefaults(c, filepath.Dir(inputPath), filepath.Dir(outputPath), c.logDir)
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	sweepStaleTempFiles(defaults, logger)

	adapter := ffmpeg.New()
	sink := sinkFor(logger)

	ctx, cancel := signalContext()
	defer cancel()

	rec, err := prepareJob(ctx, adapter, defaults, inputPath, outputPath, ov)
	if err != nil {
		return err
	}

	if err := job.Run(ctx, adapter, rec, sink, nil); err != nil {
		return err
	}
	if rec.State != job.Succeeded {
		return nil
	}

	result, err := verify.Verify(ctx, adapter, inputPath, outputPath)
	if err != nil {
		if logger != nil {
			logger.Err(err, "post-transcode verification failed to run")
		}
		return nil
	}
	if logger != nil {
		logger.Info("verify: duration ok=%v (drift %.2fs), dimensions ok=%v (%dx%d -> %dx%d)",
			result.DurationOK, result.DurationDrift, result.DimensionsOK,
			result.ExpectedW, result.ExpectedH, result.ActualW, result.ActualH)
	}
	if !result.DurationOK || !result.DimensionsOK {
		fmt.Fprintf(os.Stderr, "warning: output %s may not match input (duration ok=%v, dimensions ok=%v)\n",
			outputPath, result.DurationOK, result.DimensionsOK)
	}
	return nil
}

// batchJobSpec is one job-config JSON file's contents: an input path plus
// whatever settings this job pins explicitly. Fields left zero-valued fall
// back to the batch command's common flags, then to job.KeepSource.
type batchJobSpec struct {
	Input         string `json:"input"`
	Output        string `json:"output,omitempty"`
	Container     string `json:"container,omitempty"`
	VideoCodec    string `json:"video_codec,omitempty"`
	AudioCodec    string `json:"audio_codec,omitempty"`
	CRF           int    `json:"crf,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	ChannelLayout string `json:"channel_layout,omitempty"`
}

func loadBatchJobSpec(path string) (batchJobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return batchJobSpec{}, fmt.Errorf("read job config %s: %w", path, err)
	}
	var spec batchJobSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return batchJobSpec{}, fmt.Errorf("parse job config %s: %w", path, err)
	}
	if spec.Input == "" {
		return batchJobSpec{}, fmt.Errorf("job config %s: missing \"input\"", path)
	}
	return spec, nil
}

// collectBatchSpecs expands positional batch arguments into individual job
// specs. A path naming a JSON file is loaded directly; a path naming a
// directory is expanded via discovery.FindVideoFiles into one default
// (flags-only) spec per discovered video, the teacher's directory-of-inputs
// precedent generalized to sit alongside explicit job-config files.
func collectBatchSpecs(paths []string) ([]batchJobSpec, error) {
	var specs []batchJobSpec
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			files, err := discovery.FindVideoFiles(p)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				specs = append(specs, batchJobSpec{Input: f})
			}
			continue
		}
		spec, err := loadBatchJobSpec(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// applySpecDefaults fills a batchJobSpec's zero-valued fields from the
// batch command's common flags, so a job config only needs to name what it
// overrides.
func applySpecDefaults(spec *batchJobSpec, c commonArgs) {
	if spec.Container == "" {
		spec.Container = c.container
	}
	if spec.VideoCodec == "" {
		spec.VideoCodec = c.videoCodec
	}
	if spec.AudioCodec == "" {
		spec.AudioCodec = c.audioCodec
	}
	if spec.CRF == 0 {
		spec.CRF = c.crf
	}
}

// batchSummary tallies one batch run's outcome, modeled on the teacher's
// BatchSummary/BatchComplete reporter events.
type batchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
	Duration  time.Duration
}

func tallyBatchSummary(recs []*job.Record, elapsed time.Duration) batchSummary {
	s := batchSummary{Total: len(recs), Duration: elapsed}
	for _, rec := range recs {
		switch rec.State {
		case job.Succeeded:
			s.Succeeded++
		case job.Failed:
			s.Failed++
		case job.Cancelled:
			s.Cancelled++
		}
	}
	return s
}

func printBatchSummary(s batchSummary) {
	fmt.Printf("\nbatch complete: %d total, %d succeeded, %d failed, %d cancelled (%.1fs)\n",
		s.Total, s.Succeeded, s.Failed, s.Cancelled, s.Duration.Seconds())
}

func runBatch(args []string) error {
	var c commonArgs
	var capFlag int
	var outputDir string

	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	fs.IntVar(&capFlag, "cap", 0, "Maximum concurrently running jobs (0 = auto)")
	fs.StringVar(&outputDir, "output-dir", "", "Output directory for jobs without an explicit output path (default: alongside each input)")
	bindCommonFlags(fs, &c)
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("batch requires one or more job-config JSON files or input directories")
	}

	logger, err := setupLogging(c)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	defaults := buildDefaults(c, "", "", c.logDir)
	if capFlag > 0 {
		defaults.Concurrency = capFlag
	}
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	sweepStaleTempFiles(defaults, logger)

	specs, err := collectBatchSpecs(paths)
	if err != nil {
		return fmt.Errorf("failed to collect batch jobs: %w", err)
	}
	if logger != nil {
		logger.Info("collected %d jobs for batch run", len(specs))
	}

	adapter := ffmpeg.New()
	sink := sinkFor(logger)
	ctrl := concurrency.New(defaults.Concurrency, adapter, sink, job.Run)

	ctx, cancel := signalContext()
	defer cancel()

	var recs []*job.Record
	for _, spec := range specs {
		applySpecDefaults(&spec, c)

		inputPath, err := filepath.Abs(spec.Input)
		if err != nil {
			if logger != nil {
				logger.Err(err, "skipping %s: invalid input path", spec.Input)
			}
			continue
		}

		outDir := outputDir
		if outDir == "" {
			outDir = filepath.Dir(inputPath)
		}
		outputPath := spec.Output
		if outputPath == "" {
			outputPath = util.ResolveOutputPath(inputPath, outDir, "")
		}
		if util.FileExists(outputPath) {
			if logger != nil {
				logger.Info("skipping %s: output already exists", inputPath)
			}
			continue
		}

		d := *defaults
		d.Container = spec.Container
		d.VideoCodec = spec.VideoCodec
		d.AudioCodec = spec.AudioCodec

		ov := jobOverrides{
			width:         spec.Width,
			height:        spec.Height,
			crf:           spec.CRF,
			sampleRate:    spec.SampleRate,
			channelLayout: spec.ChannelLayout,
		}

		rec, err := prepareJob(ctx, adapter, &d, inputPath, outputPath, ov)
		if err != nil {
			if logger != nil {
				logger.Err(err, "skipping %s: failed to analyze input", inputPath)
			}
			continue
		}
		recs = append(recs, rec)
		ctrl.Submit(rec)
	}

	started := time.Now()
	runErr := ctrl.Run(ctx)
	printBatchSummary(tallyBatchSummary(recs, time.Since(started)))
	return runErr
}

// staleTempFileAgeHours is how long an orphaned staged-output file (left
// behind by a crash between write and rename) is kept before a later run's
// startup sweep removes it.
const staleTempFileAgeHours = 24

// sweepStaleTempFiles removes staged job outputs orphaned by a prior crash
// from defaults' temp directory. Best-effort: failures are logged, not fatal.
func sweepStaleTempFiles(defaults *config.Defaults, logger *logging.Logger) {
	n, err := util.CleanupStaleTempFiles(defaults.GetTempDir(), "retrans-job", staleTempFileAgeHours)
	if err != nil {
		if logger != nil {
			logger.Err(err, "stale temp file sweep failed")
		}
		return
	}
	if n > 0 && logger != nil {
		logger.Info("swept %d stale temp file(s) from %s", n, defaults.GetTempDir())
	}
}

// prepareJob probes the input's video width (so CRF-by-resolution can
// pick a default), resolves the job's codec/container policy against the
// adapter's capability table, applies any caller-pinned overrides, and
// returns a freshly Prepared Record.
func prepareJob(ctx context.Context, adapter codec.Adapter, defaults *config.Defaults, inputPath, outputPath string, ov jobOverrides) (*job.Record, error) {
	reader, err := adapter.OpenReader(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer reader.Close()

	streams := reader.Streams()
	var video, audio *codec.StreamDescriptor
	for i := range streams {
		switch streams[i].Kind {
		case codec.StreamVideo:
			if video == nil {
				video = &streams[i]
			}
		case codec.StreamAudio:
			if audio == nil {
				audio = &streams[i]
			}
		}
	}

	width := 0
	if video != nil {
		width = video.Video.Width
	}

	cfg := defaults.JobConfig(width, outputPath)
	if ov.width > 0 {
		cfg.Video.Width = ov.width
	}
	if ov.height > 0 {
		cfg.Video.Height = ov.height
	}
	if ov.crf > 0 {
		cfg.Video.CRF = ov.crf
	}
	if ov.sampleRate > 0 {
		cfg.Audio.SampleRate = ov.sampleRate
	}
	if ov.channelLayout != "" {
		cfg.Audio.ChannelLayout = ov.channelLayout
	}

	resolved, err := resolve.Resolve(cfg, adapter, video, audio)
	if err != nil {
		return nil, fmt.Errorf("resolve config for %s: %w", inputPath, err)
	}

	return job.NewRecord(resolved.Config, inputPath), nil
}

func sinkFor(logger *logging.Logger) control.Sink {
	term := reporter.NewTerminalSink()
	if logger == nil {
		return term
	}
	return reporter.Multi{term, reporter.NewLogSink(logger)}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
