package level

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/linuxmatters/voxdose/internal/audio"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// FrameDuration is the analysis frame duration in seconds for both passes
const FrameDuration = 0.05

// ErrNoFrames is returned when a signal is too short for a single frame
var ErrNoFrames = errors.New("signal is shorter than one frame")

// Framing selects how a signal is partitioned into frames
type Framing int

const (
	// FixedFraming is used for the monitored recording: frames of
	// round(duration·Fs) samples. The first frame starts one frame length
	// into the signal and the last full frame is dropped.
	FixedFraming Framing = iota

	// PowerOfTwoFraming is used for the calibration recording: the frame
	// length is rounded up to the next power of two and framing starts at
	// the first sample.
	PowerOfTwoFraming
)

// String returns the framing name for logs
func (f Framing) String() string {
	switch f {
	case FixedFraming:
		return "fixed"
	case PowerOfTwoFraming:
		return "power-of-two"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// FrameLength returns the frame size in samples for a frame duration
func (f Framing) FrameLength(duration float64, sampleRate int) int {
	switch f {
	case PowerOfTwoFraming:
		return nextPow2(int(math.Ceil(duration * float64(sampleRate))))
	default:
		// half-sample lengths round to even, 1102.5 gives 1102
		return int(math.RoundToEven(duration * float64(sampleRate)))
	}
}

// Starts returns the first sample index of every frame of n samples in a
// signal of total samples.
func (f Framing) Starts(n, total int) []int {
	if n <= 0 {
		return nil
	}
	var starts []int
	switch f {
	case PowerOfTwoFraming:
		for s := 0; s <= total-n; s += n {
			starts = append(starts, s)
		}
	default:
		for s := n; s < total-n; s += n {
			starts = append(starts, s)
		}
	}
	return starts
}

// Track is a per-frame level series with frame-centre timestamps
type Track struct {
	Mean        float64   // time-weighted mean level, dB
	StdDev      float64   // population standard deviation of Levels, dB
	Levels      []float64 // dB per frame, -Inf for silent frames
	Times       []float64 // frame-centre seconds, strictly increasing
	FrameLength int       // samples
	Framing     Framing
}

// Len returns the number of frames
func (t Track) Len() int {
	return len(t.Levels)
}

// Level frames sig with the given strategy and estimates every frame's level
// with calibration constant c. Frames are processed in parallel; ordering
// by time is preserved. A signal too short for one frame returns an empty
// Track and no error.
func Level(ctx context.Context, sig audio.Signal, c, duration float64, framing Framing) (Track, error) {
	if sig.SampleRate <= 0 {
		return Track{}, ErrInvalidSampleRate
	}

	n := framing.FrameLength(duration, sig.SampleRate)
	track := Track{FrameLength: n, Framing: framing}
	starts := framing.Starts(n, len(sig.Samples))
	if len(starts) == 0 {
		return track, nil
	}

	track.Levels = make([]float64, len(starts))
	track.Times = make([]float64, len(starts))
	half := math.RoundToEven(float64(n-1) / 2)
	fs := float64(sig.SampleRate)
	for i, s := range starts {
		track.Times[i] = (float64(s) + half) / fs
	}

	workers := min(runtime.GOMAXPROCS(0), len(starts))
	chunk := (len(starts) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(starts))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			est := NewEstimator(n)
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s := starts[i]
				e, err := est.Estimate(sig.Samples[s:s+n], sig.SampleRate, c)
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				track.Levels[i] = e.Level
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Track{}, err
	}

	track.Mean = weightedMean(track.Levels, track.Times, duration)
	track.StdDev = populationStdDev(track.Levels)
	return track, nil
}

// weightedMean returns Σ level·Δt divided by the elapsed time n·Δt, with Δt
// the gap between the first two frame times applied to every frame. A lone
// frame uses the frame duration as Δt and divides by its own timestamp,
// which is not a physical average.
func weightedMean(levels, times []float64, duration float64) float64 {
	switch len(levels) {
	case 0:
		return 0
	case 1:
		if times[0] == 0 {
			return levels[0]
		}
		return levels[0] * duration / times[0]
	}

	dt := times[1] - times[0]
	var sum float64
	for _, l := range levels {
		sum += l * dt
	}
	return sum / (float64(len(levels)) * dt)
}

func populationStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
