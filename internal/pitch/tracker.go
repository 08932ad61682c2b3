package pitch

import (
	"context"
	"fmt"
	"math"

	"github.com/linuxmatters/voxdose/internal/audio"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Autocorrelation tracker defaults
const (
	DefaultOctaveCost       = 0.01
	DefaultVoicingThreshold = 0.45
	DefaultSilenceThreshold = 0.03

	// analysis window spans this many periods of the lowest pitch
	periodsPerWindow = 3
)

// Autocorrelation estimates F0 from the normalised autocorrelation of Hann
// windowed frames, corrected by the window's own autocorrelation. Each frame
// is decided independently; there is no path finding across frames.
type Autocorrelation struct {
	OctaveCost       float64 // favours higher-frequency candidates
	VoicingThreshold float64 // minimum corrected autocorrelation peak
	SilenceThreshold float64 // frame peak relative to global peak below which a frame is silent
}

// NewAutocorrelation returns a tracker with the default thresholds
func NewAutocorrelation() *Autocorrelation {
	return &Autocorrelation{
		OctaveCost:       DefaultOctaveCost,
		VoicingThreshold: DefaultVoicingThreshold,
		SilenceThreshold: DefaultSilenceThreshold,
	}
}

// Track implements Tracker. Frames are centred in the signal: with window
// W = 3/F0Min and step S, there are floor((duration-W)/S)+1 frames. A
// signal shorter than one window yields an empty Track.
func (a *Autocorrelation) Track(ctx context.Context, sig audio.Signal, p Params) (Track, error) {
	if err := p.Validate(); err != nil {
		return Track{}, err
	}
	if sig.Empty() {
		return Track{}, nil
	}

	fs := float64(sig.SampleRate)
	nw := int(math.Round(periodsPerWindow / p.F0Min * fs))
	if nw < 4 || nw > len(sig.Samples) {
		return Track{}, nil
	}

	win := float64(nw) / fs
	step := p.Hop()
	dur := sig.Duration()
	frames := int(math.Floor((dur-win)/step)) + 1
	first := (dur - float64(frames-1)*step) / 2

	track := Track{
		Times:  make([]float64, frames),
		Values: make([]float64, frames),
	}
	for i := range track.Times {
		track.Times[i] = first + float64(i)*step
	}

	globalPeak := 0.0
	for _, v := range sig.Samples {
		globalPeak = max(globalPeak, math.Abs(v))
	}
	if globalPeak == 0 {
		return track, nil
	}

	window := hann(nw)
	nfft := nextPow2(2 * nw)
	windowACF := autocorrelate(fourier.NewFFT(nfft), window, nfft)

	minLag := max(int(math.Ceil(fs/p.F0Max)), 2)
	maxLag := min(int(math.Floor(fs/p.F0Min)), nw-2)
	if minLag > maxLag {
		return track, nil
	}

	err := forEachChunk(ctx, frames, func(ctx context.Context, lo, hi int) error {
		fft := fourier.NewFFT(nfft)
		seg := make([]float64, nw)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := int(math.Round((track.Times[i] - win/2) * fs))
			start = max(0, min(start, len(sig.Samples)-nw))

			mean := 0.0
			for _, v := range sig.Samples[start : start+nw] {
				mean += v
			}
			mean /= float64(nw)

			localPeak := 0.0
			for k, v := range sig.Samples[start : start+nw] {
				v -= mean
				localPeak = max(localPeak, math.Abs(v))
				seg[k] = v * window[k]
			}

			track.Values[i] = a.frameF0(fft, seg, nfft, windowACF, localPeak/globalPeak, fs, p, minLag, maxLag)
		}
		return nil
	})
	if err != nil {
		return Track{}, fmt.Errorf("tracking pitch: %w", err)
	}
	return track, nil
}

// frameF0 returns the best voiced candidate in Hz or 0 when the unvoiced
// candidate is stronger
func (a *Autocorrelation) frameF0(fft *fourier.FFT, seg []float64, nfft int, windowACF []float64, relPeak, fs float64, p Params, minLag, maxLag int) float64 {
	r := autocorrelate(fft, seg, nfft)
	if r[0] <= 0 {
		return 0
	}

	norm := func(lag int) float64 {
		if windowACF[lag] <= 0 {
			return 0
		}
		return r[lag] / windowACF[lag]
	}

	unvoiced := a.VoicingThreshold + math.Max(0, 2-relPeak/(a.SilenceThreshold/(1+a.VoicingThreshold)))

	bestF0 := 0.0
	bestStrength := unvoiced
	for lag := minLag; lag <= maxLag; lag++ {
		y1, y2, y3 := norm(lag-1), norm(lag), norm(lag+1)
		if y2 < y1 || y2 < y3 || y2 < a.VoicingThreshold {
			continue
		}

		// parabolic interpolation of lag and height
		offset := 0.0
		peak := y2
		if den := y1 - 2*y2 + y3; den != 0 {
			offset = 0.5 * (y1 - y3) / den
			peak = y2 - 0.25*(y1-y3)*offset
		}
		tau := (float64(lag) + offset) / fs
		f0 := 1 / tau
		if f0 < p.F0Min || f0 > p.F0Max {
			continue
		}

		strength := peak - a.OctaveCost*math.Log2(p.F0Min*tau)
		if strength > bestStrength {
			bestStrength = strength
			bestF0 = f0
		}
	}
	return bestF0
}

// autocorrelate returns the autocorrelation of x normalised to r[0] = 1,
// computed through a zero-padded FFT of size nfft ≥ 2·len(x).
func autocorrelate(fft *fourier.FFT, x []float64, nfft int) []float64 {
	padded := make([]float64, nfft)
	copy(padded, x)

	coeffs := fft.Coefficients(nil, padded)
	for k, c := range coeffs {
		coeffs[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	r := fft.Sequence(nil, coeffs)

	r0 := r[0]
	out := make([]float64, len(x))
	if r0 <= 0 {
		return out
	}
	for lag := range out {
		out[lag] = r[lag] / r0
	}
	return out
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
