package level

import (
	"context"
	"fmt"
	"math"

	"github.com/linuxmatters/voxdose/internal/audio"
)

// DefaultConstant is the calibration constant of an uncalibrated run and the
// base constant the calibration file is levelled with.
const DefaultConstant = 50.0

// Calibration is the additive correction that maps estimated levels to SPL
type Calibration struct {
	Constant   float64 // C in measured + C = SPL
	Calibrated bool

	ReferenceLevel float64 // meter reading for the calibration file, dB
	MeasuredLevel  float64 // mean level of the calibration file at DefaultConstant
	Frames         int     // frames in the calibration pass
}

// Uncalibrated returns the fallback calibration
func Uncalibrated() Calibration {
	return Calibration{Constant: DefaultConstant}
}

// Calibrate derives C = DefaultConstant + reference - L0, where L0 is the
// mean level of sig under PowerOfTwoFraming at DefaultConstant.
// Callers substitute Uncalibrated() on error.
func Calibrate(ctx context.Context, sig audio.Signal, reference float64) (Calibration, error) {
	if sig.Empty() {
		return Calibration{}, audio.ErrEmptySignal
	}
	if math.IsNaN(reference) || math.IsInf(reference, 0) {
		return Calibration{}, fmt.Errorf("reference level %v is not finite", reference)
	}

	track, err := Level(ctx, sig, DefaultConstant, FrameDuration, PowerOfTwoFraming)
	if err != nil {
		return Calibration{}, fmt.Errorf("levelling calibration signal: %w", err)
	}
	if track.Len() == 0 {
		return Calibration{}, ErrNoFrames
	}
	if math.IsNaN(track.Mean) || math.IsInf(track.Mean, 0) {
		return Calibration{}, fmt.Errorf("calibration signal contains silent frames (mean level %v dB)", track.Mean)
	}

	return Calibration{
		Constant:       DefaultConstant + reference - track.Mean,
		Calibrated:     true,
		ReferenceLevel: reference,
		MeasuredLevel:  track.Mean,
		Frames:         track.Len(),
	}, nil
}
