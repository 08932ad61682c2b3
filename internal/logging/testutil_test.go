package logging

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/audio"
	"github.com/linuxmatters/voxdose/internal/dose"
	"github.com/linuxmatters/voxdose/internal/level"
	"github.com/linuxmatters/voxdose/internal/timeline"
)

// calibratedResult returns a small calibrated run reported at 50 cm, with
// its input path inside a temporary directory
func calibratedResult(t *testing.T) *analysis.Result {
	t.Helper()

	opts := analysis.DefaultOptions()
	opts.Report50cm = true
	opts.LeqWindow = 60

	tl := &timeline.Timeline{
		Time: []float64{0.075, 0.125, 0.175, 0.225, 0.275},
		SPL:  []float64{72.5, 0, 80, 75, 78},
		F0:   []float64{150, 0, 210, 180, 190},
		CPPS: []float64{8.4, 0, 10, 9, 11},
	}
	tl.Smooth(1, 1, 1)

	v, err := dose.ComputeSeries(tl.Time, tl.SPL, tl.F0, opts.Gender)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}

	return &analysis.Result{
		InputPath: filepath.Join(t.TempDir(), "voice.wav"),
		Metadata: &audio.Metadata{
			Format:     "wav",
			Duration:   0.3,
			SampleRate: 16000,
			Channels:   2,
			Channel:    1,
			BitDepth:   16,
		},
		Options: opts,
		Calibration: level.Calibration{
			Constant:       61.2,
			Calibrated:     true,
			ReferenceLevel: 85,
			MeasuredLevel:  73.8,
			Frames:         40,
		},
		TargetDistance: 0.50,
		LevelMean:      68.4,
		LevelStdDev:    4.1,
		Timeline:       tl,
		Stats: timeline.Stats{
			Frames:             5,
			Unvoiced:           1,
			Voiced:             4,
			DistanceCorrection: 20 * math.Log10(0.30/0.50),
		},
		Dose:        v,
		LevelFrames: 5,
		PitchFrames: 6,
		CPPSFrames:  6,
		CPPSEnabled: true,
		Elapsed:     120 * time.Millisecond,
	}
}

// uncalibratedResult returns a run at the default calibration constant
func uncalibratedResult(t *testing.T) *analysis.Result {
	t.Helper()
	r := calibratedResult(t)
	r.Options.Report50cm = false
	r.Calibration = level.Uncalibrated()
	r.TargetDistance = r.Options.CalibrationDistance
	r.Stats.DistanceCorrection = 0
	return r
}
