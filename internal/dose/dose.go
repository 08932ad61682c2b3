// Package dose integrates an aligned (time, SPL, F0) series into vocal dose
// metrics: phonation time, cycle count, distance, dissipated energy and
// radiated energy.
package dose

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidInput is returned for rows with fewer than three columns
	// or mismatched series lengths
	ErrInvalidInput = errors.New("invalid dose input")

	// ErrUnknownGender is returned for gender selectors outside male, female and other
	ErrUnknownGender = errors.New("unknown gender")
)

// DefaultTimeStep is used when fewer than two timestamps are available or
// no consecutive timestamps increase
const DefaultTimeStep = 0.05

// Vector is the 13-field vocal dose result
type Vector struct {
	Dt        float64 // voiced time, s
	VLI       float64 // vocal loading index, kcycles
	Dd        float64 // distance dose, m
	De        float64 // dissipated energy dose, J
	Dr        float64 // radiated energy dose, J
	DtPercent float64 // voiced share of the recording, %; n·dt over an (n−1)·dt span can exceed 100
	DdRate    float64 // m/s of voiced time
	DeRate    float64 // J/s of voiced time
	DrRate    float64 // J/s of voiced time
	SPLMean   float64 // dBA
	F0Mean    float64 // Hz
	SPLStdDev float64 // dBA, spread of the time-weighted SPL contributions
	F0StdDev  float64 // Hz, spread of the time-weighted F0 contributions
}

// Labels are the column headings of Vector.Values, in order
var Labels = [13]string{
	"Dt (s)", "VLI (kcycles)", "Dd (m)", "De (J)", "Dr (J)",
	"Dt_p (%)", "Dd_n (m/s)", "De_n (J/s)", "Dr_n (J/s)",
	"SPL_mean (dBA)", "F0_mean (Hz)", "SPL_sd (dBA)", "F0_sd (Hz)",
}

// Values returns the fields in Labels order
func (v Vector) Values() [13]float64 {
	return [13]float64{
		v.Dt, v.VLI, v.Dd, v.De, v.Dr,
		v.DtPercent, v.DdRate, v.DeRate, v.DrRate,
		v.SPLMean, v.F0Mean, v.SPLStdDev, v.F0StdDev,
	}
}

// Compute integrates rows of (time, SPL, F0). Extra columns are ignored.
// Every row must have at least three columns.
func Compute(rows [][]float64, g Gender) (Vector, error) {
	time := make([]float64, len(rows))
	spl := make([]float64, len(rows))
	f0 := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return Vector{}, fmt.Errorf("%w: row %d has %d columns, want time, SPL and F0", ErrInvalidInput, i, len(row))
		}
		time[i], spl[i], f0[i] = row[0], row[1], row[2]
	}
	return ComputeSeries(time, spl, f0, g)
}

// ComputeSeries integrates parallel time, SPL and F0 series. Only frames
// with F0 > 0 and SPL > 0 contribute.
func ComputeSeries(time, spl, f0 []float64, g Gender) (Vector, error) {
	if !g.Valid() {
		return Vector{}, fmt.Errorf("%w: %d", ErrUnknownGender, int(g))
	}
	if len(spl) != len(time) || len(f0) != len(time) {
		return Vector{}, fmt.Errorf("%w: series lengths differ (time %d, SPL %d, F0 %d)",
			ErrInvalidInput, len(time), len(spl), len(f0))
	}

	n := len(time)
	dt := TimeStep(time)

	splPartial := make([]float64, n)
	f0Partial := make([]float64, n)
	var sumDt, sumCycles, sumDistance, sumEnergy, sumRadiated float64

	for i := 0; i < n; i++ {
		f, s := f0[i], spl[i]
		if !(f > 0 && s > 0) {
			continue
		}

		m, err := g.Evaluate(f, s, dt)
		if err != nil {
			return Vector{}, err
		}
		omega := 2 * math.Pi * f
		ratio := m.Amplitude / max(m.ContactTime, tiny)

		sumDt += dt
		sumCycles += f * dt
		sumDistance += f * m.Amplitude
		sumEnergy += m.Damping * ratio * ratio * omega * omega * dt / 1000
		sumRadiated += math.Pow(10, (s-120)/10) * 1000 * dt

		splPartial[i] = s * dt
		f0Partial[i] = f * dt
	}

	v := Vector{
		Dt:  sumDt,
		VLI: sumCycles / 1000,
		Dd:  4 * sumDistance,
		De:  0.5 * sumEnergy,
		Dr:  4 * math.Pi * sumRadiated,
	}

	span := max(v.Dt, tiny)
	if n >= 2 {
		span = max(time[n-1]-time[0], tiny)
	}
	v.DtPercent = 100 * v.Dt / span

	if v.Dt > 0 {
		v.DdRate = v.Dd / v.Dt
		v.DeRate = v.De / v.Dt
		v.DrRate = v.Dr / v.Dt
		v.SPLMean = floats.Sum(splPartial) / v.Dt
		v.F0Mean = floats.Sum(f0Partial) / v.Dt
		v.SPLStdDev = popStdDev(splPartial)
		v.F0StdDev = popStdDev(f0Partial)
	}
	return v, nil
}

// TimeStep returns the median of the strictly positive differences between
// consecutive timestamps, or DefaultTimeStep when there are none
func TimeStep(time []float64) float64 {
	if len(time) < 2 {
		return DefaultTimeStep
	}
	diffs := make([]float64, 0, len(time)-1)
	for i := 1; i < len(time); i++ {
		if d := time[i] - time[i-1]; d > 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return DefaultTimeStep
	}

	sort.Float64s(diffs)
	mid := len(diffs) / 2
	if len(diffs)%2 == 1 {
		return diffs[mid]
	}
	return 0.5 * (diffs[mid-1] + diffs[mid])
}

func popStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}
