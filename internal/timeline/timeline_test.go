package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAlign() AlignOptions {
	return AlignOptions{
		F0Min:               75,
		F0Max:               400,
		CalibrationDistance: 0.30,
		TargetDistance:      0.30,
		NoiseFloor:          NoiseFloor,
	}
}

func TestAlignTruncates(t *testing.T) {
	time := []float64{0.025, 0.075, 0.125, 0.175, 0.225}
	spl := []float64{60, 61, 62, 63}
	f0 := []float64{100, 110, 120, 130, 140, 150}
	cpps := []float64{10, 11, 12, 13, 14}

	tl, stats := Align(time, spl, f0, cpps, defaultAlign())

	require.Equal(t, 4, tl.Len())
	assert.Equal(t, []float64{0.025, 0.075, 0.125, 0.175}, tl.Time)
	assert.Len(t, tl.SPL, 4)
	assert.Len(t, tl.F0, 4)
	assert.Len(t, tl.CPPS, 4)
	assert.Equal(t, 4, stats.Frames)
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 4, stats.Voiced)
}

func TestAlignDoesNotModifyInputs(t *testing.T) {
	spl := []float64{40, 70}
	f0 := []float64{500, 120}
	Align([]float64{0, 1}, spl, f0, []float64{5, 5}, defaultAlign())

	assert.Equal(t, []float64{40, 70}, spl)
	assert.Equal(t, []float64{500, 120}, f0)
}

func TestAlignRules(t *testing.T) {
	time := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	spl := []float64{70, 70, 70, 45, math.Inf(-1), 70, 70, 70}
	f0 := []float64{150, 50, 450, 150, 150, 0, math.NaN(), 75}
	cpps := []float64{8, 8, 8, 8, 8, 8, 8, 8}

	tl, stats := Align(time, spl, f0, cpps, defaultAlign())

	assert.Equal(t, []float64{70, 0, 0, 0, 0, 0, 0, 70}, tl.SPL)
	assert.Equal(t, []float64{150, 0, 0, 0, 0, 0, 0, 75}, tl.F0)
	assert.Equal(t, []float64{8, 0, 0, 0, 0, 0, 0, 8}, tl.CPPS)

	assert.Equal(t, 1, stats.Unvoiced)
	assert.Equal(t, 3, stats.OutOfBand)
	assert.Equal(t, 2, stats.BelowFloor)
	assert.Equal(t, 6, stats.CrossMasked)
	assert.Equal(t, 2, stats.Voiced)
	assert.InDelta(t, 0.25, stats.VoicedFraction(), 1e-12)
}

func TestAlignInvariant(t *testing.T) {
	n := 200
	time := make([]float64, n)
	spl := make([]float64, n)
	f0 := make([]float64, n)
	cpps := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = float64(i) * 0.05
		spl[i] = 30 + float64(i%50)
		f0[i] = float64((i * 37) % 500)
		cpps[i] = 1 + float64(i%7)
	}

	tl, stats := Align(time, spl, f0, cpps, defaultAlign())

	voiced := 0
	for i := 0; i < tl.Len(); i++ {
		if tl.F0[i] == 0 || tl.SPL[i] == 0 {
			assert.Equal(t, 0.0, tl.F0[i], "F0 at %d", i)
			assert.Equal(t, 0.0, tl.SPL[i], "SPL at %d", i)
			assert.Equal(t, 0.0, tl.CPPS[i], "CPPS at %d", i)
			continue
		}
		voiced++
		assert.GreaterOrEqual(t, tl.F0[i], 75.0)
		assert.LessOrEqual(t, tl.F0[i], 400.0)
		assert.GreaterOrEqual(t, tl.SPL[i], NoiseFloor)
	}
	assert.Equal(t, stats.Voiced, voiced)
}

func TestAlignDistanceCorrection(t *testing.T) {
	tests := []struct {
		name   string
		cal    float64
		target float64
		in     float64
		want   float64
	}{
		{"same distance", 0.30, 0.30, 70, 70},
		{"30 to 50 cm", 0.30, 0.50, 70, 70 - 20*math.Log10(0.6)},
		{"25 to 50 cm", 0.25, 0.50, 70, 70 + 20*math.Log10(2)},
		{"50 to 25 cm", 0.50, 0.25, 70, 70 - 20*math.Log10(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultAlign()
			opts.CalibrationDistance = tt.cal
			opts.TargetDistance = tt.target

			tl, _ := Align([]float64{0}, []float64{tt.in}, []float64{200}, []float64{0}, opts)
			assert.InDelta(t, tt.want, tl.SPL[0], 1e-9)
		})
	}
}

func TestAlignCorrectionBeforeFloor(t *testing.T) {
	// 52 dB corrected by -6.02 dB falls under the floor; 48 dB corrected
	// by +4.44 dB rises over it
	opts := defaultAlign()
	opts.CalibrationDistance = 0.50
	opts.TargetDistance = 0.25
	tl, _ := Align([]float64{0}, []float64{52}, []float64{200}, []float64{0}, opts)
	assert.Equal(t, 0.0, tl.SPL[0])
	assert.Equal(t, 0.0, tl.F0[0])

	opts.CalibrationDistance = 0.30
	opts.TargetDistance = 0.50
	tl, _ = Align([]float64{0}, []float64{48}, []float64{200}, []float64{0}, opts)
	assert.InDelta(t, 48-20*math.Log10(0.6), tl.SPL[0], 1e-9)
}

func TestAlignZeroDistances(t *testing.T) {
	opts := defaultAlign()
	opts.CalibrationDistance = 0
	opts.TargetDistance = 0
	tl, stats := Align([]float64{0}, []float64{70}, []float64{200}, []float64{0}, opts)
	assert.Equal(t, 0.0, stats.DistanceCorrection)
	assert.Equal(t, 70.0, tl.SPL[0])
}

func TestAlignEmpty(t *testing.T) {
	tl, stats := Align(nil, []float64{1, 2}, nil, nil, defaultAlign())
	assert.Equal(t, 0, tl.Len())
	assert.Empty(t, tl.Matrix())
	assert.Equal(t, 0, stats.Voiced)
	assert.Equal(t, 0.0, stats.VoicedFraction())
}

func TestMatrix(t *testing.T) {
	tl, _ := Align([]float64{0.1, 0.2}, []float64{70, 40}, []float64{200, 210}, []float64{5, 6}, defaultAlign())
	assert.Equal(t, [][]float64{{0.1, 70, 200}, {0.2, 0, 0}}, tl.Matrix())
}

func TestMovingMean(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		w    int
		want []float64
	}{
		{"window one is identity on valid", []float64{1, 0, 3}, 1, []float64{1, 0, 3}},
		{"zeros ignored", []float64{2, 0, 4, 0, 0}, 3, []float64{2, 3, 4, 4, 0}},
		{"even window leans back", []float64{1, 2, 3, 4}, 2, []float64{1, 1.5, 2.5, 3.5}},
		{"non-finite ignored", []float64{math.NaN(), 5, math.Inf(1), -1}, 3, []float64{5, 5, 5, 0}},
		{"window longer than series", []float64{0, 6, 0}, 9, []float64{6, 6, 6}},
		{"zero window", []float64{1, 2}, 0, []float64{0, 0}},
		{"empty", nil, 3, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MovingMean(tt.x, tt.w)
			require.Len(t, got, len(tt.x))
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestMovingMeanDoesNotDiluteWithGaps(t *testing.T) {
	x := make([]float64, 100)
	for i := 0; i < len(x); i += 4 {
		x[i] = 200
	}
	for i, v := range MovingMean(x, 11) {
		assert.InDelta(t, 200, v, 1e-12, "frame %d", i)
	}
}

func TestMovingLeq(t *testing.T) {
	t.Run("constant level", func(t *testing.T) {
		db := []float64{70, 70, 70, 70, 70}
		got := MovingLeq(db, 3)
		assert.InDelta(t, 70, got[2], 1e-9)
		// edge windows are zero padded
		assert.InDelta(t, 70+10*math.Log10(2.0/3.0), got[0], 1e-9)
	})

	t.Run("energetic not arithmetic", func(t *testing.T) {
		got := MovingLeq([]float64{60, 80}, 2)
		want := 10 * math.Log10((math.Pow(10, 6)+math.Pow(10, 8))/2)
		assert.InDelta(t, want, got[1], 1e-9)
	})

	t.Run("invalid frames floor", func(t *testing.T) {
		got := MovingLeq([]float64{0, 0, math.Inf(-1)}, 1)
		for _, v := range got {
			assert.InDelta(t, -120, v, 1e-9)
		}
	})
}

func TestWindowFrames(t *testing.T) {
	assert.Equal(t, 100, WindowFrames(5, 0.05))
	assert.Equal(t, 1200, WindowFrames(60, 0.05))
	assert.Equal(t, 1, WindowFrames(0.01, 0.05))
	assert.Equal(t, 1, WindowFrames(5, 0))
}

func TestSmooth(t *testing.T) {
	tl, _ := Align(
		[]float64{0, 1, 2},
		[]float64{70, 70, 70},
		[]float64{100, 0, 300},
		[]float64{10, 10, 20},
		defaultAlign(),
	)
	tl.Smooth(3, 3, 3)

	assert.InDeltaSlice(t, []float64{100, 200, 300}, tl.F0Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{10, 15, 20}, tl.CPPSMean, 1e-12)
	require.Len(t, tl.Leq, 3)
}
