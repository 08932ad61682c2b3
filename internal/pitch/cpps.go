package pitch

import (
	"context"
	"fmt"
	"math"

	"github.com/linuxmatters/voxdose/internal/audio"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Cepstral extractor defaults
const (
	DefaultTimeSmoothing      = 0.01  // seconds
	DefaultQuefrencySmoothing = 0.001 // seconds
	trendStartQuefrency       = 0.001 // seconds
	silentFrameEnergy         = 1e-20
)

// Cepstral computes cepstral peak prominence smoothed (CPPS) per frame.
// Frames of round(FrameLength·Fs) samples advance by round(Hop·Fs) and are
// timestamped at their centre.
type Cepstral struct {
	TimeSmoothing      float64 // seconds of power cepstra averaged around each frame
	QuefrencySmoothing float64 // seconds of quefrency averaged in each cepstrum
}

// NewCepstral returns an extractor with the default smoothing windows
func NewCepstral() *Cepstral {
	return &Cepstral{
		TimeSmoothing:      DefaultTimeSmoothing,
		QuefrencySmoothing: DefaultQuefrencySmoothing,
	}
}

// Extract implements CPPSExtractor
func (c *Cepstral) Extract(ctx context.Context, sig audio.Signal, p Params) (Track, error) {
	if err := p.Validate(); err != nil {
		return Track{}, err
	}
	if sig.Empty() {
		return Track{}, nil
	}

	fs := float64(sig.SampleRate)
	frameLen, starts, track := cepstralFrames(sig, p)
	if len(starts) == 0 || frameLen < 4 {
		return track, nil
	}

	nfft := nextPow2(frameLen)
	window := hann(frameLen)

	// Linear power cepstra per frame; nil marks a silent frame
	cepstra := make([][]float64, len(starts))
	err := forEachChunk(ctx, len(starts), func(ctx context.Context, lo, hi int) error {
		fft := fourier.NewFFT(nfft)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			cepstra[i] = powerCepstrum(fft, sig.Samples[starts[i]:starts[i]+frameLen], window, nfft)
		}
		return nil
	})
	if err != nil {
		return Track{}, fmt.Errorf("extracting CPPS: %w", err)
	}

	hop := p.Hop()
	timeHalf := int(math.Round(c.TimeSmoothing / hop / 2))
	quefHalf := int(math.Round(c.QuefrencySmoothing * fs / 2))

	peakLo := max(int(math.Floor(fs/p.F0Max)), 1)
	peakHi := min(int(math.Ceil(fs/p.F0Min)), nfft/2-1)
	trendLo := max(int(math.Round(trendStartQuefrency*fs)), 1)
	trendHi := nfft / 2

	for i := range cepstra {
		if cepstra[i] == nil || peakLo > peakHi {
			continue
		}
		smoothed := smoothQuefrency(averageFrames(cepstra, i, timeHalf), quefHalf)
		for q, v := range smoothed {
			smoothed[q] = 10 * math.Log10(v+1e-30)
		}
		track.Values[i] = prominence(smoothed, fs, peakLo, peakHi, trendLo, trendHi)
	}
	return track, nil
}

// cepstralFrames returns the frame length, frame start indices and a zeroed
// Track with frame-centre times
func cepstralFrames(sig audio.Signal, p Params) (int, []int, Track) {
	fs := float64(sig.SampleRate)
	frameLen := int(math.Round(p.FrameLength * fs))
	hop := max(int(math.Round(p.Hop()*fs)), 1)

	var starts []int
	if frameLen > 0 {
		for pos := 0; pos+frameLen <= len(sig.Samples); pos += hop {
			starts = append(starts, pos)
		}
	}

	track := Track{
		Times:  make([]float64, len(starts)),
		Values: make([]float64, len(starts)),
	}
	for i, s := range starts {
		track.Times[i] = float64(s+frameLen/2) / fs
	}
	return frameLen, starts, track
}

// powerCepstrum returns |c(q)|² for quefrency bins 0..nfft/2 of the real
// cepstrum of the Hann windowed frame, or nil for a silent frame
func powerCepstrum(fft *fourier.FFT, frame, window []float64, nfft int) []float64 {
	padded := make([]float64, nfft)
	var energy float64
	for i, v := range frame {
		padded[i] = v * window[i]
		energy += padded[i] * padded[i]
	}
	if energy <= silentFrameEnergy {
		return nil
	}

	coeffs := fft.Coefficients(nil, padded)
	for k, z := range coeffs {
		power := real(z)*real(z) + imag(z)*imag(z)
		coeffs[k] = complex(math.Log(power+1e-30), 0)
	}
	ceps := fft.Sequence(nil, coeffs)

	out := make([]float64, nfft/2+1)
	for q := range out {
		c := ceps[q] / float64(nfft)
		out[q] = c * c
	}
	return out
}

// averageFrames averages the non-silent cepstra within ±half frames of i
func averageFrames(cepstra [][]float64, i, half int) []float64 {
	out := make([]float64, len(cepstra[i]))
	count := 0
	for j := max(0, i-half); j <= min(len(cepstra)-1, i+half); j++ {
		if cepstra[j] == nil {
			continue
		}
		for q, v := range cepstra[j] {
			out[q] += v
		}
		count++
	}
	for q := range out {
		out[q] /= float64(count)
	}
	return out
}

// smoothQuefrency applies a centred moving average of ±half bins. The input
// is returned unchanged when half is not positive.
func smoothQuefrency(x []float64, half int) []float64 {
	if half <= 0 {
		return x
	}
	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, len(x))
	for i := range x {
		lo := max(0, i-half)
		hi := min(len(x), i+half+1)
		out[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
	return out
}

// prominence returns the height of the cepstral peak in [peakLo, peakHi]
// above the least-squares trend line fitted over [trendLo, trendHi)
func prominence(ceps []float64, fs float64, peakLo, peakHi, trendLo, trendHi int) float64 {
	peakQ := peakLo
	for q := peakLo; q <= peakHi; q++ {
		if ceps[q] > ceps[peakQ] {
			peakQ = q
		}
	}

	trendHi = min(trendHi, len(ceps))
	if trendHi-trendLo < 2 {
		return 0
	}
	xs := make([]float64, 0, trendHi-trendLo)
	ys := make([]float64, 0, trendHi-trendLo)
	for q := trendLo; q < trendHi; q++ {
		xs = append(xs, float64(q)/fs)
		ys = append(ys, ceps[q])
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	return ceps[peakQ] - (alpha + beta*float64(peakQ)/fs)
}

// Nop is the CPPS extractor used when cepstral analysis is disabled. It
// returns zeros on the cepstral framing.
type Nop struct{}

// Extract implements CPPSExtractor
func (Nop) Extract(_ context.Context, sig audio.Signal, p Params) (Track, error) {
	if sig.Empty() || p.FrameLength <= 0 {
		return Track{}, nil
	}
	_, _, track := cepstralFrames(sig, p)
	return track, nil
}
