// Package pitch provides per-frame fundamental frequency tracking and
// cepstral peak prominence (CPPS) extraction.
package pitch

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/linuxmatters/voxdose/internal/audio"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidParams is returned for framing or frequency bounds that cannot be analysed
var ErrInvalidParams = errors.New("invalid pitch parameters")

// Params configures framing and the F0 search range
type Params struct {
	FrameLength  float64 // seconds
	FrameOverlap float64 // seconds, negative selects half the frame length
	F0Min        float64 // Hz
	F0Max        float64 // Hz
}

// DefaultParams returns 50 ms frames without overlap so each frame lines up
// with one level frame.
func DefaultParams() Params {
	return Params{
		FrameLength:  0.05,
		FrameOverlap: 0,
		F0Min:        75,
		F0Max:        400,
	}
}

// Hop returns the frame step in seconds
func (p Params) Hop() float64 {
	overlap := p.FrameOverlap
	if overlap < 0 {
		overlap = p.FrameLength / 2
	}
	return p.FrameLength - overlap
}

// Validate checks the parameters for use on a signal
func (p Params) Validate() error {
	var errs []error
	if p.FrameLength <= 0 {
		errs = append(errs, fmt.Errorf("frame length %v s must be positive", p.FrameLength))
	}
	if p.Hop() <= 0 {
		errs = append(errs, fmt.Errorf("frame overlap %v s leaves no hop", p.FrameOverlap))
	}
	if p.F0Min <= 0 || p.F0Max <= p.F0Min {
		errs = append(errs, fmt.Errorf("F0 range %v-%v Hz is empty", p.F0Min, p.F0Max))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
	}
	return nil
}

// Track is a per-frame series. For F0, 0 marks an unvoiced frame.
type Track struct {
	Times  []float64 // frame-centre seconds
	Values []float64
}

// Len returns the number of frames
func (t Track) Len() int {
	return len(t.Values)
}

// Tracker estimates F0 per frame
type Tracker interface {
	Track(ctx context.Context, sig audio.Signal, p Params) (Track, error)
}

// CPPSExtractor estimates cepstral peak prominence (smoothed) per frame in dB
type CPPSExtractor interface {
	Extract(ctx context.Context, sig audio.Signal, p Params) (Track, error)
}

// forEachChunk splits [0, n) into contiguous chunks, one per worker, and
// runs fn on each in parallel. fn writes results by index.
func forEachChunk(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	workers := min(runtime.GOMAXPROCS(0), n)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return fn(gctx, lo, hi)
		})
	}
	return g.Wait()
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
