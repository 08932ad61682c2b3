package timeline

import (
	"math"
)

// WindowFrames converts a window in seconds to a whole number of frames,
// never less than one
func WindowFrames(seconds, frameDuration float64) int {
	if frameDuration <= 0 {
		return 1
	}
	return max(1, int(math.Round(seconds/frameDuration)))
}

// window returns the [lo, hi) index range of the centred window of w frames
// around i, clipped to a series of n frames. For even w the window extends
// one frame further back than forward.
func window(i, w, n int) (int, int) {
	hi := i + (w-1)/2 + 1
	lo := hi - w
	return max(0, lo), min(n, hi)
}

// MovingMean returns, for every frame, the mean of the positive finite
// values inside a centred window of w frames. Zeros and non-finite values
// are missing data: they count in neither the sum nor the denominator. A
// window without any valid value yields 0. The output has the input's
// length; w < 1 yields all zeros.
func MovingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	if w < 1 {
		return out
	}

	sum := make([]float64, len(x)+1)
	count := make([]int, len(x)+1)
	for i, v := range x {
		sum[i+1] = sum[i]
		count[i+1] = count[i]
		if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			sum[i+1] += v
			count[i+1]++
		}
	}

	for i := range x {
		lo, hi := window(i, w, len(x))
		if n := count[hi] - count[lo]; n > 0 {
			out[i] = (sum[hi] - sum[lo]) / float64(n)
		}
	}
	return out
}

// MovingLeq returns the energetic average of the positive dB values in a
// centred window of w frames: 10·log10(Σ 10^(L/10) / w). Invalid frames add
// zero energy but still count in w, so sparse phonation lowers the Leq.
// Empty windows floor at 10·log10(1e-12) = -120 dB.
func MovingLeq(db []float64, w int) []float64 {
	out := make([]float64, len(db))
	if w < 1 {
		return out
	}

	energy := make([]float64, len(db)+1)
	for i, v := range db {
		lin := 0.0
		if v > 0 && !math.IsInf(v, 0) {
			lin = math.Pow(10, v/10)
		}
		energy[i+1] = energy[i] + lin
	}

	for i := range db {
		lo, hi := window(i, w, len(db))
		mean := (energy[hi] - energy[lo]) / float64(w)
		out[i] = 10 * math.Log10(math.Max(mean, 1e-12))
	}
	return out
}

// Smooth fills the moving averages: F0 and CPPS means over the valid
// frames, and the SPL Leq
func (t *Timeline) Smooth(f0Window, cppsWindow, leqWindow int) {
	t.F0Mean = MovingMean(t.F0, f0Window)
	t.CPPSMean = MovingMean(t.CPPS, cppsWindow)
	t.Leq = MovingLeq(t.SPL, leqWindow)
}
