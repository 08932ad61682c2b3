// Package timeline fuses the independently framed SPL, F0 and CPPS series
// into one validated timeline and derives its moving averages.
package timeline

import (
	"math"
)

// NoiseFloor is the SPL in dB below which a frame counts as background noise
const NoiseFloor = 50.0

const minDistance = 1e-9

// AlignOptions holds the validity and normalisation rules
type AlignOptions struct {
	F0Min               float64 // Hz
	F0Max               float64 // Hz
	CalibrationDistance float64 // metres between mouth and microphone during calibration
	TargetDistance      float64 // metres the SPL is reported at
	NoiseFloor          float64 // dB
}

// DistanceCorrection returns the dB subtracted from every SPL value to move
// it from the calibration distance to the target distance
func (o AlignOptions) DistanceCorrection() float64 {
	return 20 * math.Log10(math.Max(o.CalibrationDistance, minDistance)/math.Max(o.TargetDistance, minDistance))
}

// Timeline is the aligned per-frame series. After Align, F0[i] == 0 implies
// SPL[i] == 0 and CPPS[i] == 0, and SPL[i] == 0 implies F0[i] == 0.
type Timeline struct {
	Time []float64 // seconds
	SPL  []float64 // dB at the target distance, 0 when invalid
	F0   []float64 // Hz, 0 when unvoiced or invalid
	CPPS []float64 // dB, 0 when invalid

	// Moving averages, filled by Smooth
	F0Mean   []float64
	CPPSMean []float64
	Leq      []float64
}

// Len returns the number of frames
func (t *Timeline) Len() int {
	return len(t.Time)
}

// Matrix returns the (time, SPL, F0) rows consumed by dose integration
func (t *Timeline) Matrix() [][]float64 {
	rows := make([][]float64, t.Len())
	for i := range rows {
		rows[i] = []float64{t.Time[i], t.SPL[i], t.F0[i]}
	}
	return rows
}

// Stats counts what each alignment rule removed
type Stats struct {
	Frames      int // frames after truncation
	Dropped     int // frames lost to truncation from the longest input
	Unvoiced    int // frames the tracker marked unvoiced
	OutOfBand   int // voiced frames with F0 outside [F0Min, F0Max]
	BelowFloor  int // frames under the noise floor after distance correction
	CrossMasked int // frames zeroed in one stream because the other was invalid
	Voiced      int // voiced-valid frames remaining

	DistanceCorrection float64 // dB subtracted from SPL
}

// VoicedFraction returns the share of frames that are voiced-valid
func (s Stats) VoicedFraction() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Voiced) / float64(s.Frames)
}

// Align truncates the series to their common length and applies, in order,
// the F0 band check, distance correction, the noise floor gate and the
// cross-mask. Inputs are not modified.
func Align(time, spl, f0, cpps []float64, opts AlignOptions) (*Timeline, Stats) {
	n := min(len(time), len(spl), len(f0), len(cpps))
	longest := max(len(time), len(spl), len(f0), len(cpps))

	tl := &Timeline{
		Time: append([]float64(nil), time[:n]...),
		SPL:  append([]float64(nil), spl[:n]...),
		F0:   append([]float64(nil), f0[:n]...),
		CPPS: append([]float64(nil), cpps[:n]...),
	}
	stats := Stats{
		Frames:             n,
		Dropped:            longest - n,
		DistanceCorrection: opts.DistanceCorrection(),
	}

	for i := 0; i < n; i++ {
		f := tl.F0[i]
		switch {
		case f == 0:
			stats.Unvoiced++
		case math.IsNaN(f) || f < opts.F0Min || f > opts.F0Max:
			tl.F0[i] = 0
			stats.OutOfBand++
		}
	}

	for i := 0; i < n; i++ {
		tl.SPL[i] -= stats.DistanceCorrection
	}

	for i := 0; i < n; i++ {
		// catches -Inf silence and NaN as well as quiet frames
		if !(tl.SPL[i] >= opts.NoiseFloor) {
			tl.SPL[i] = 0
			stats.BelowFloor++
		}
	}

	for i := 0; i < n; i++ {
		if tl.F0[i] != 0 && tl.SPL[i] != 0 {
			stats.Voiced++
			continue
		}
		if tl.F0[i] != 0 || tl.SPL[i] != 0 {
			stats.CrossMasked++
		}
		tl.F0[i] = 0
		tl.SPL[i] = 0
		tl.CPPS[i] = 0
	}

	return tl, stats
}
