package pitch

import (
	"context"
	"math"
	"testing"

	"github.com/linuxmatters/voxdose/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(seconds float64, sampleRate int, freq, amp float64) audio.Signal {
	n := int(seconds * float64(sampleRate))
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.Signal{Samples: s, SampleRate: sampleRate}
}

// harmonicSignal is a band-limited sawtooth, rich in harmonics like a voice
func harmonicSignal(seconds float64, sampleRate int, freq, amp float64) audio.Signal {
	n := int(seconds * float64(sampleRate))
	s := make([]float64, n)
	for h := 1; float64(h)*freq < float64(sampleRate)/2; h++ {
		for i := range s {
			s[i] += amp / float64(h) * math.Sin(2*math.Pi*float64(h)*freq*float64(i)/float64(sampleRate))
		}
	}
	return audio.Signal{Samples: s, SampleRate: sampleRate}
}

func noiseSignal(seconds float64, sampleRate int, amp float64) audio.Signal {
	n := int(seconds * float64(sampleRate))
	s := make([]float64, n)
	state := uint32(12345)
	for i := range s {
		state = state*1664525 + 1013904223
		s[i] = amp * ((float64(state)/float64(math.MaxUint32))*2 - 1)
	}
	return audio.Signal{Samples: s, SampleRate: sampleRate}
}

func TestParamsHop(t *testing.T) {
	tests := []struct {
		name    string
		length  float64
		overlap float64
		want    float64
	}{
		{"no overlap", 0.05, 0, 0.05},
		{"explicit overlap", 0.04, 0.01, 0.03},
		{"default half overlap", 0.04, -1, 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{FrameLength: tt.length, FrameOverlap: tt.overlap}
			assert.InDelta(t, tt.want, p.Hop(), 1e-12)
		})
	}
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	bad := []Params{
		{FrameLength: 0, F0Min: 75, F0Max: 400},
		{FrameLength: 0.05, FrameOverlap: 0.05, F0Min: 75, F0Max: 400},
		{FrameLength: 0.05, F0Min: 400, F0Max: 75},
		{FrameLength: 0.05, F0Min: 0, F0Max: 400},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams, "%+v", p)
	}
}

func TestAutocorrelationSine(t *testing.T) {
	tests := []struct {
		name string
		freq float64
	}{
		{"110 Hz", 110},
		{"220 Hz", 220},
		{"180 Hz", 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := sineSignal(1.2, 16000, tt.freq, 0.05)
			track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
			require.NoError(t, err)

			// W = 40 ms, S = 50 ms over 1.2 s
			require.Equal(t, 24, track.Len())
			for i, f := range track.Values {
				assert.InDelta(t, tt.freq, f, 2, "frame %d", i)
			}
		})
	}
}

func TestAutocorrelationFramesCentred(t *testing.T) {
	sig := sineSignal(1.2, 16000, 220, 0.05)
	track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
	require.NoError(t, err)

	first := track.Times[0]
	last := track.Times[track.Len()-1]
	assert.InDelta(t, sig.Duration()-last, first, 1e-9)
	for i := 1; i < track.Len(); i++ {
		assert.InDelta(t, 0.05, track.Times[i]-track.Times[i-1], 1e-9)
	}
}

func TestAutocorrelationUnvoiced(t *testing.T) {
	t.Run("silence", func(t *testing.T) {
		sig := audio.Signal{Samples: make([]float64, 16000), SampleRate: 16000}
		track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
		require.NoError(t, err)
		require.Greater(t, track.Len(), 0)
		for _, f := range track.Values {
			assert.Equal(t, 0.0, f)
		}
	})

	t.Run("tone below range", func(t *testing.T) {
		sig := sineSignal(1, 16000, 50, 0.3)
		track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
		require.NoError(t, err)
		for i, f := range track.Values {
			assert.Equal(t, 0.0, f, "frame %d", i)
		}
	})

	t.Run("quiet tail after loud tone", func(t *testing.T) {
		loud := sineSignal(0.6, 16000, 200, 0.5)
		samples := append(loud.Samples, make([]float64, 9600)...)
		sig := audio.Signal{Samples: samples, SampleRate: 16000}

		track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
		require.NoError(t, err)
		assert.InDelta(t, 200, track.Values[0], 2)
		assert.Equal(t, 0.0, track.Values[track.Len()-1])
	})
}

func TestAutocorrelationShortSignal(t *testing.T) {
	sig := sineSignal(0.02, 16000, 220, 0.1)
	track, err := NewAutocorrelation().Track(context.Background(), sig, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, track.Len())

	track, err = NewAutocorrelation().Track(context.Background(), audio.Signal{}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, track.Len())
}

func TestAutocorrelationInvalidParams(t *testing.T) {
	_, err := NewAutocorrelation().Track(context.Background(), sineSignal(1, 16000, 220, 0.1), Params{})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestCepstralFraming(t *testing.T) {
	sig := harmonicSignal(1, 16000, 150, 0.1)
	track, err := NewCepstral().Extract(context.Background(), sig, DefaultParams())
	require.NoError(t, err)

	require.Equal(t, 20, track.Len())
	assert.InDelta(t, 0.025, track.Times[0], 1e-12)
	assert.InDelta(t, 0.975, track.Times[19], 1e-12)

	nop, err := Nop{}.Extract(context.Background(), sig, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, track.Times, nop.Times)
	for _, v := range nop.Values {
		assert.Equal(t, 0.0, v)
	}
}

func TestCepstralVoicedAboveNoise(t *testing.T) {
	p := DefaultParams()
	voiced, err := NewCepstral().Extract(context.Background(), harmonicSignal(1, 16000, 150, 0.1), p)
	require.NoError(t, err)
	noise, err := NewCepstral().Extract(context.Background(), noiseSignal(1, 16000, 0.1), p)
	require.NoError(t, err)

	mean := func(x []float64) float64 {
		var s float64
		for _, v := range x {
			s += v
		}
		return s / float64(len(x))
	}

	assert.Greater(t, mean(voiced.Values), mean(noise.Values)+3)
	for i, v := range voiced.Values {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "frame %d: %v", i, v)
	}
}

func TestCepstralSilence(t *testing.T) {
	sig := audio.Signal{Samples: make([]float64, 8000), SampleRate: 16000}
	track, err := NewCepstral().Extract(context.Background(), sig, DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 10, track.Len())
	for _, v := range track.Values {
		assert.Equal(t, 0.0, v)
	}
}

func TestSmoothQuefrency(t *testing.T) {
	x := []float64{0, 0, 3, 0, 0}
	assert.Equal(t, x, smoothQuefrency(x, 0))
	assert.InDeltaSlice(t, []float64{0, 1, 1, 1, 0}, smoothQuefrency(x, 1), 1e-12)
}
