// Package level estimates frame levels in dB from the magnitude spectrum and
// derives the single-point calibration constant that maps them to SPL.
package level

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SilenceEnergy is the mean spectral energy at or below which a frame
	// is reported as -Inf dB
	SilenceEnergy = 1e-20

	// SpectrumFloor replaces exact-zero magnitudes in the diagnostic spectrum
	SpectrumFloor = 1e-17
)

// ErrEmptyFrame is returned when a level is requested for a frame with no samples
var ErrEmptyFrame = errors.New("frame has no samples")

// ErrInvalidSampleRate is returned for non-positive sample rates
var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// Estimate is the level of one frame.
// No A-weighting filter is applied; the dBA unit is nominal.
type Estimate struct {
	Level    float64   // dB, -Inf for true silence
	Spectrum []float64 // 20·log10 magnitude per bin below Nyquist, always finite
}

// Estimator computes frame levels for a fixed frame length. It reuses its
// FFT plan and buffers between calls, so an Estimator must not be shared
// between goroutines.
type Estimator struct {
	n      int
	fft    *fourier.FFT
	coeffs []complex128
}

// NewEstimator returns an Estimator for frames of n samples
func NewEstimator(n int) *Estimator {
	return &Estimator{
		n:      n,
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
	}
}

// Estimate returns the level of frame plus the calibration constant c.
// Frames whose length differs from the Estimator's get a temporary plan.
func (e *Estimator) Estimate(frame []float64, sampleRate int, c float64) (Estimate, error) {
	if len(frame) == 0 {
		return Estimate{}, ErrEmptyFrame
	}
	if sampleRate <= 0 {
		return Estimate{}, ErrInvalidSampleRate
	}
	if len(frame) != e.n {
		return NewEstimator(len(frame)).Estimate(frame, sampleRate, c)
	}

	e.fft.Coefficients(e.coeffs, frame)

	// Bins k with 2k < N lie strictly below Nyquist
	bins := (e.n + 1) / 2
	spectrum := make([]float64, bins)
	var total float64
	for k := 0; k < bins; k++ {
		mag := cmplxAbs(e.coeffs[k])
		total += mag * mag
		if mag == 0 {
			mag = SpectrumFloor
		}
		spectrum[k] = 20 * math.Log10(mag)
	}
	total /= float64(bins)

	duration := float64(len(frame)) / float64(sampleRate)
	meanEnergy := total / duration

	lvl := math.Inf(-1)
	if meanEnergy > SilenceEnergy {
		lvl = 10*math.Log10(meanEnergy) + c
	}
	return Estimate{Level: lvl, Spectrum: spectrum}, nil
}

// EstimateFrame is a convenience wrapper for a one-off frame
func EstimateFrame(frame []float64, sampleRate int, c float64) (Estimate, error) {
	if len(frame) == 0 {
		return Estimate{}, ErrEmptyFrame
	}
	return NewEstimator(len(frame)).Estimate(frame, sampleRate, c)
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}
