package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/linuxmatters/voxdose/internal/dose"
	"github.com/linuxmatters/voxdose/internal/level"
	"github.com/linuxmatters/voxdose/internal/timeline"
)

// ReportDistance50cm is the target distance used by Options.Report50cm
const ReportDistance50cm = 0.50

// Options configures one analysis run
type Options struct {
	Gender dose.Gender

	// Calibration recording and its sound level meter reading. Without
	// both the run is uncalibrated.
	CalibrationFile  string
	CalibrationLevel *float64 // dBA

	FreqLow  float64 // Hz, lowest valid F0
	FreqHigh float64 // Hz, highest valid F0

	CalibrationDistance float64 // metres, microphone distance during calibration
	TargetDistance      float64 // metres, 0 reports at the calibration distance
	Report50cm          bool    // report at 50 cm when calibrated

	F0Window   float64 // seconds, F0 moving mean
	CPPSWindow float64 // seconds, CPPS moving mean
	LeqWindow  float64 // seconds, moving Leq

	FrameDuration float64 // seconds
	NoiseFloor    float64 // dB
	CPPS          bool    // compute cepstral peak prominence
}

// DefaultOptions returns the standard analysis configuration
func DefaultOptions() Options {
	return Options{
		Gender:              dose.Male,
		FreqLow:             75,
		FreqHigh:            400,
		CalibrationDistance: 0.30,
		F0Window:            5,
		CPPSWindow:          5,
		LeqWindow:           60,
		FrameDuration:       level.FrameDuration,
		NoiseFloor:          timeline.NoiseFloor,
		CPPS:                true,
	}
}

// Validate reports every invalid field at once
func (o Options) Validate() error {
	var errs []error
	if !o.Gender.Valid() {
		errs = append(errs, fmt.Errorf("%w: %d", dose.ErrUnknownGender, int(o.Gender)))
	}
	if !(o.FreqLow > 0) || !(o.FreqHigh > o.FreqLow) {
		errs = append(errs, fmt.Errorf("F0 range %v-%v Hz must be positive and increasing", o.FreqLow, o.FreqHigh))
	}
	if !(o.CalibrationDistance > 0) {
		errs = append(errs, fmt.Errorf("calibration distance %v m must be positive", o.CalibrationDistance))
	}
	if o.TargetDistance < 0 || math.IsNaN(o.TargetDistance) {
		errs = append(errs, fmt.Errorf("target distance %v m must not be negative", o.TargetDistance))
	}
	if !(o.FrameDuration > 0) {
		errs = append(errs, fmt.Errorf("frame duration %v s must be positive", o.FrameDuration))
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"F0 window", o.F0Window},
		{"CPPS window", o.CPPSWindow},
		{"Leq window", o.LeqWindow},
	} {
		if w.value < 0 || math.IsNaN(w.value) {
			errs = append(errs, fmt.Errorf("%s %v s must not be negative", w.name, w.value))
		}
	}
	if o.CalibrationLevel != nil && (math.IsNaN(*o.CalibrationLevel) || math.IsInf(*o.CalibrationLevel, 0)) {
		errs = append(errs, fmt.Errorf("calibration level %v dBA is not finite", *o.CalibrationLevel))
	}
	return errors.Join(errs...)
}

// WantsCalibration reports whether both a calibration file and its level are set
func (o Options) WantsCalibration() bool {
	return o.CalibrationFile != "" && o.CalibrationLevel != nil
}

// ReportDistance returns the distance SPL is reported at. Uncalibrated runs
// always report at the calibration distance.
func (o Options) ReportDistance(calibrated bool) float64 {
	switch {
	case !calibrated:
		return o.CalibrationDistance
	case o.Report50cm:
		return ReportDistance50cm
	case o.TargetDistance > 0:
		return o.TargetDistance
	default:
		return o.CalibrationDistance
	}
}
