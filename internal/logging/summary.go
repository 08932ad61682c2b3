package logging

import (
	"fmt"
	"math"
	"sort"

	"github.com/linuxmatters/voxdose/internal/analysis"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HistogramBins is the number of bins in distribution histograms
const HistogramBins = 30

// SummaryRow is one line of the results table
type SummaryRow struct {
	Label string
	Value string
}

// SummaryRows returns the results table shown on screen and in the report
func SummaryRows(r *analysis.Result) []SummaryRow {
	d := r.Dose
	var cpps Distribution
	if r.Timeline != nil {
		cpps = Distribute(positive(r.Timeline.CPPS))
	}
	return []SummaryRow{
		{"Total phonation time (s)", fmt.Sprintf("%.1f", d.Dt)},
		{"Vocal Loading Index (kcycles)", fmt.Sprintf("%.2f", d.VLI)},
		{"Distance dose (m)", fmt.Sprintf("%.2f", d.Dd)},
		{"Energy dose (J)", fmt.Sprintf("%.2f", d.De)},
		{"Radiation dose (J)", fmt.Sprintf("%.2f", d.Dr)},
		{"Phonation time (%)", fmt.Sprintf("%.1f", d.DtPercent)},
		{"Distance dose rate (m/s)", fmt.Sprintf("%.3f", d.DdRate)},
		{"Energy dose rate (J/s)", fmt.Sprintf("%.3f", d.DeRate)},
		{"Radiation dose rate (J/s)", fmt.Sprintf("%.3f", d.DrRate)},
		{"Mean SPL (dBA)", fmt.Sprintf("%.1f", d.SPLMean)},
		{"Mean F0 (Hz)", fmt.Sprintf("%.1f", d.F0Mean)},
		{"SPL standard deviation (dBA)", fmt.Sprintf("%.1f", d.SPLStdDev)},
		{"F0 standard deviation (Hz)", fmt.Sprintf("%.1f", d.F0StdDev)},
		{"CPPS mean (dB)", fmt.Sprintf("%.2f", cpps.Mean)},
		{"Distance correction", DistanceText(r)},
	}
}

// DistanceText describes the distance SPL is reported at
func DistanceText(r *analysis.Result) string {
	if !r.Calibration.Calibrated {
		return fmt.Sprintf("Uncalibrated (C=%.0f)", r.Calibration.Constant)
	}
	return fmt.Sprintf("%d → %d cm", r.CalibrationDistanceCM(), r.TargetDistanceCM())
}

// Bin is one histogram bin covering [Low, High)
type Bin struct {
	Low, High float64
	Count     int
}

// Distribution summarises the valid frames of one series
type Distribution struct {
	Count     int
	Mean      float64
	StdDev    float64
	Min, Max  float64
	P5, P50   float64
	P95       float64
	Histogram []Bin
}

// Distribute computes summary statistics and a HistogramBins histogram.
// An empty input yields the zero Distribution.
func Distribute(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)

	d := Distribution{
		Count: len(x),
		Min:   x[0],
		Max:   x[len(x)-1],
		P5:    stat.Quantile(0.05, stat.Empirical, x, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, x, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, x, nil),
	}
	d.Mean = floats.Sum(x) / float64(len(x))
	if len(x) > 1 {
		_, d.StdDev = stat.PopMeanStdDev(x, nil)
	}

	lo, hi := d.Min, d.Max
	if hi-lo < 1e-9 {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := make([]float64, HistogramBins+1)
	floats.Span(dividers, lo, hi)
	dividers[HistogramBins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	d.Histogram = make([]Bin, HistogramBins)
	for i := range d.Histogram {
		d.Histogram[i] = Bin{Low: dividers[i], High: dividers[i+1], Count: int(counts[i])}
	}
	return d
}

// positive returns the finite values above zero
func positive(values []float64) []float64 {
	var out []float64
	for _, v := range values {
		if v > 0 && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
