// Package analysis runs the vocal dose pipeline for one recording: decode,
// calibrate, level, track pitch and CPPS, align, smooth and integrate.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/linuxmatters/voxdose/internal/audio"
	"github.com/linuxmatters/voxdose/internal/dose"
	"github.com/linuxmatters/voxdose/internal/level"
	"github.com/linuxmatters/voxdose/internal/pitch"
	"github.com/linuxmatters/voxdose/internal/timeline"
	"golang.org/x/sync/errgroup"
)

// Stage identifies a pipeline step for progress reporting
type Stage int

const (
	StageDecode Stage = iota
	StageCalibrate
	StageAnalyse // level, pitch and CPPS run together
	StageAlign
	StageDose
	StageDone
)

// String returns the stage name shown in progress displays
func (s Stage) String() string {
	switch s {
	case StageDecode:
		return "Decoding"
	case StageCalibrate:
		return "Calibrating"
	case StageAnalyse:
		return "Analysing"
	case StageAlign:
		return "Aligning"
	case StageDose:
		return "Integrating"
	case StageDone:
		return "Done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ProgressFunc receives the current stage and overall progress in [0, 1]
type ProgressFunc func(stage Stage, progress float64)

// Result is everything one run produces
type Result struct {
	InputPath string
	Metadata  *audio.Metadata
	Options   Options

	Calibration    level.Calibration
	TargetDistance float64 // metres SPL is reported at

	// Monitoring level track before distance correction and gating
	LevelMean   float64
	LevelStdDev float64

	Timeline *timeline.Timeline
	Stats    timeline.Stats
	Dose     dose.Vector

	LevelFrames int
	PitchFrames int
	CPPSFrames  int
	CPPSEnabled bool

	Warnings []string
	Elapsed  time.Duration
}

// Matrix returns the (time, SPL, F0) rows
func (r *Result) Matrix() [][]float64 {
	return r.Timeline.Matrix()
}

// TargetDistanceCM returns the report distance rounded to whole centimetres
func (r *Result) TargetDistanceCM() int {
	return int(math.Round(r.TargetDistance * 100))
}

// CalibrationDistanceCM returns the microphone distance rounded to whole centimetres
func (r *Result) CalibrationDistanceCM() int {
	return int(math.Round(r.Options.CalibrationDistance * 100))
}

// Analyzer wires the pipeline collaborators
type Analyzer struct {
	Decoder audio.Decoder
	Tracker pitch.Tracker
	CPPS    pitch.CPPSExtractor
	Logger  *slog.Logger
}

// New returns an Analyzer with the file decoder, the autocorrelation pitch
// tracker and, when enabled, the cepstral CPPS extractor. With CPPS
// disabled the no-op extractor is bound instead.
func New(opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	var cpps pitch.CPPSExtractor = pitch.Nop{}
	if opts.CPPS {
		cpps = pitch.NewCepstral()
	}
	return &Analyzer{
		Decoder: audio.FileDecoder{},
		Tracker: pitch.NewAutocorrelation(),
		CPPS:    cpps,
		Logger:  logger,
	}
}

// Analyze runs the pipeline with the default collaborators
func Analyze(ctx context.Context, path string, opts Options, progress ProgressFunc) (*Result, error) {
	return New(opts, nil).Analyze(ctx, path, opts, progress)
}

// Analyze runs the pipeline on the recording at path. Calibration, pitch
// and CPPS failures are absorbed as warnings; decode failures of the
// recording, invalid options and cancellation are returned.
func (a *Analyzer) Analyze(ctx context.Context, path string, opts Options, progress ProgressFunc) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if progress == nil {
		progress = func(Stage, float64) {}
	}
	log := a.Logger.With("file", path)
	start := time.Now()

	result := &Result{
		InputPath: path,
		Options:   opts,
	}
	warn := func(msg string, args ...any) {
		log.Warn(msg, args...)
		result.Warnings = append(result.Warnings, formatWarning(msg, args...))
	}

	progress(StageDecode, 0)
	sig, meta, err := a.Decoder.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	result.Metadata = meta
	log.Info("decoded recording", "duration", sig.Duration(), "sample_rate", sig.SampleRate, "samples", len(sig.Samples))

	progress(StageCalibrate, 0.1)
	result.Calibration = a.calibrate(ctx, opts, warn)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.TargetDistance = opts.ReportDistance(result.Calibration.Calibrated)
	if !result.Calibration.Calibrated && (opts.Report50cm || (opts.TargetDistance > 0 && opts.TargetDistance != opts.CalibrationDistance)) {
		warn("uncalibrated run reports at the calibration distance", "distance_m", opts.CalibrationDistance)
	}

	progress(StageAnalyse, 0.2)
	streams, err := a.analyseStreams(ctx, sig, opts, result.Calibration.Constant)
	if err != nil {
		return nil, err
	}
	for _, w := range streams.warnings {
		warn(w.msg, w.args...)
	}
	result.LevelMean = streams.level.Mean
	result.LevelStdDev = streams.level.StdDev
	result.LevelFrames = streams.level.Len()
	result.PitchFrames = streams.pitch.Len()
	result.CPPSFrames = streams.cpps.Len()
	result.CPPSEnabled = opts.CPPS && !streams.cppsFailed

	progress(StageAlign, 0.8)
	n := streams.level.Len()
	f0 := streams.pitch.Values
	if len(f0) == 0 {
		f0 = make([]float64, n)
	}
	cpps := streams.cpps.Values
	if len(cpps) == 0 {
		cpps = make([]float64, n)
	}

	tl, stats := timeline.Align(streams.level.Times, streams.level.Levels, f0, cpps, timeline.AlignOptions{
		F0Min:               opts.FreqLow,
		F0Max:               opts.FreqHigh,
		CalibrationDistance: opts.CalibrationDistance,
		TargetDistance:      result.TargetDistance,
		NoiseFloor:          opts.NoiseFloor,
	})
	tl.Smooth(
		timeline.WindowFrames(opts.F0Window, opts.FrameDuration),
		timeline.WindowFrames(opts.CPPSWindow, opts.FrameDuration),
		timeline.WindowFrames(opts.LeqWindow, opts.FrameDuration),
	)
	result.Timeline = tl
	result.Stats = stats
	log.Debug("aligned timeline",
		"frames", stats.Frames,
		"voiced", stats.Voiced,
		"out_of_band", stats.OutOfBand,
		"below_floor", stats.BelowFloor,
		"cross_masked", stats.CrossMasked,
	)

	progress(StageDose, 0.9)
	result.Dose, err = dose.ComputeSeries(tl.Time, tl.SPL, tl.F0, opts.Gender)
	if err != nil {
		return nil, fmt.Errorf("computing vocal doses: %w", err)
	}

	result.Elapsed = time.Since(start)
	log.Info("analysis complete", "voiced_s", result.Dose.Dt, "elapsed", result.Elapsed)
	progress(StageDone, 1)
	return result, nil
}

// calibrate returns the calibration for opts or the uncalibrated fallback
func (a *Analyzer) calibrate(ctx context.Context, opts Options, warn func(string, ...any)) level.Calibration {
	switch {
	case opts.CalibrationFile == "" && opts.CalibrationLevel == nil:
		return level.Uncalibrated()
	case opts.CalibrationFile == "":
		warn("calibration level given without a calibration file, running uncalibrated")
		return level.Uncalibrated()
	case opts.CalibrationLevel == nil:
		warn("calibration file given without a calibration level, running uncalibrated", "calibration_file", opts.CalibrationFile)
		return level.Uncalibrated()
	}

	sig, _, err := a.Decoder.Decode(opts.CalibrationFile)
	if err == nil {
		var cal level.Calibration
		cal, err = level.Calibrate(ctx, sig, *opts.CalibrationLevel)
		if err == nil {
			a.Logger.Info("calibrated",
				"constant", cal.Constant,
				"reference_dba", cal.ReferenceLevel,
				"measured_db", cal.MeasuredLevel,
				"frames", cal.Frames,
			)
			return cal
		}
	}
	warn("calibration failed, using uncalibrated constant", "calibration_file", opts.CalibrationFile, "error", err)
	return level.Uncalibrated()
}

type warning struct {
	msg  string
	args []any
}

type streams struct {
	level      level.Track
	pitch      pitch.Track
	cpps       pitch.Track
	cppsFailed bool
	warnings   []warning
}

// analyseStreams runs levelling, pitch tracking and CPPS extraction
// concurrently. Pitch and CPPS failures become warnings and empty tracks.
func (a *Analyzer) analyseStreams(ctx context.Context, sig audio.Signal, opts Options, c float64) (*streams, error) {
	out := &streams{}
	var mu sync.Mutex
	addWarning := func(msg string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		out.warnings = append(out.warnings, warning{msg, args})
	}

	params := pitch.Params{
		FrameLength:  opts.FrameDuration,
		FrameOverlap: 0,
		F0Min:        opts.FreqLow,
		F0Max:        opts.FreqHigh,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		track, err := level.Level(gctx, sig, c, opts.FrameDuration, level.FixedFraming)
		if err != nil {
			return fmt.Errorf("levelling recording: %w", err)
		}
		out.level = track
		return nil
	})
	g.Go(func() error {
		track, err := a.Tracker.Track(gctx, sig, params)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			addWarning("pitch tracking failed, treating all frames as unvoiced", "error", err)
		case track.Len() == 0:
			addWarning("pitch tracker returned no frames, treating all frames as unvoiced")
		default:
			out.pitch = track
		}
		return nil
	})
	g.Go(func() error {
		track, err := a.CPPS.Extract(gctx, sig, params)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			addWarning("CPPS extraction failed, using zeros", "error", err)
			mu.Lock()
			out.cppsFailed = true
			mu.Unlock()
		default:
			out.cpps = track
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// formatWarning renders a log message and its attributes as one line
func formatWarning(msg string, args ...any) string {
	r := slog.NewRecord(time.Time{}, slog.LevelWarn, msg, 0)
	r.Add(args...)
	s := msg
	r.Attrs(func(attr slog.Attr) bool {
		s += fmt.Sprintf(" (%s: %v)", attr.Key, attr.Value.Any())
		return true
	})
	return s
}
