// Package audio provides audio file decoding into mono analysis signals
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a decoder
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidSampleRate is returned when a decoder reports a non-positive sample rate
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrEmptySignal is returned by consumers that need at least one sample
	ErrEmptySignal = errors.New("signal has no samples")
)

// Signal is a decoded mono recording. Samples are normalised to [-1, 1].
// A Signal is never modified after loading.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Empty reports whether the signal carries no usable samples
func (s Signal) Empty() bool {
	return len(s.Samples) == 0 || s.SampleRate <= 0
}

// Metadata describes the source file a Signal was decoded from
type Metadata struct {
	Format     string  // "wav", "mp3", "flac" or "ogg"
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	Channel    int // index of the channel kept as the mono signal
	BitDepth   int // 0 when the codec has no fixed bit depth
}

// Decoder turns a file into a Signal
type Decoder interface {
	Decode(path string) (Signal, *Metadata, error)
}

// FileDecoder decodes files from the local filesystem by extension
type FileDecoder struct{}

// Decode implements Decoder
func (FileDecoder) Decode(path string) (Signal, *Metadata, error) {
	return Load(path)
}

// Load decodes the audio file at path and returns the channel with the
// highest RMS energy as a mono Signal.
func Load(path string) (Signal, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	var dec *decoded
	switch ext {
	case ".wav", ".wave":
		dec, err = decodeWAV(f)
	case ".mp3":
		dec, err = decodeMP3(f)
	case ".flac":
		dec, err = decodeFLAC(f)
	case ".ogg", ".oga":
		dec, err = decodeOGG(f)
	default:
		return Signal{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Signal{}, nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if dec.sampleRate <= 0 {
		return Signal{}, nil, fmt.Errorf("%w: %d Hz in %s", ErrInvalidSampleRate, dec.sampleRate, filepath.Base(path))
	}

	ch := LoudestChannel(dec.channels)
	var samples []float64
	if ch >= 0 {
		samples = dec.channels[ch]
	}

	sig := Signal{Samples: samples, SampleRate: dec.sampleRate}
	meta := &Metadata{
		Format:     strings.TrimPrefix(ext, "."),
		Duration:   sig.Duration(),
		SampleRate: dec.sampleRate,
		Channels:   len(dec.channels),
		Channel:    ch,
		BitDepth:   dec.bitDepth,
	}
	return sig, meta, nil
}

// LoudestChannel returns the index of the channel with the highest RMS
// energy, or -1 when there are no channels. Ties keep the lowest index.
func LoudestChannel(channels [][]float64) int {
	best := -1
	bestRMS := -1.0
	for i, ch := range channels {
		rms := RMS(ch)
		if rms > bestRMS {
			best = i
			bestRMS = rms
		}
	}
	return best
}

// RMS returns the root-mean-square value of x, 0 for an empty slice
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// decoded holds de-interleaved, normalised channels
type decoded struct {
	channels   [][]float64
	sampleRate int
	bitDepth   int
}

func newDecoded(numChannels, capacity, sampleRate, bitDepth int) *decoded {
	d := &decoded{
		channels:   make([][]float64, numChannels),
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
	}
	for i := range d.channels {
		d.channels[i] = make([]float64, 0, capacity)
	}
	return d
}

// --- WAV ---

func decodeWAV(r io.ReadSeeker) (*decoded, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	numChans := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		numChans = buf.Format.NumChannels
	}
	if numChans <= 0 {
		return nil, errors.New("WAV file declares no channels")
	}
	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}

	frames := len(buf.Data) / numChans
	out := newDecoded(numChans, frames, int(dec.SampleRate), bitDepth)

	// 8-bit WAV is unsigned; wider depths are signed two's complement
	scale := math.Pow(2, float64(bitDepth-1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}
	for i := 0; i < frames*numChans; i++ {
		ch := i % numChans
		out.channels[ch] = append(out.channels[ch], (float64(buf.Data[i])-offset)/scale)
	}
	return out, nil
}

// --- MP3 ---

// go-mp3 always produces 16-bit little-endian interleaved stereo
const mp3Channels = 2

func decodeMP3(r io.Reader) (*decoded, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("reading MP3 frames: %w", err)
	}

	frameSize := 2 * mp3Channels
	frames := len(raw) / frameSize
	out := newDecoded(mp3Channels, frames, dec.SampleRate(), 16)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < mp3Channels; ch++ {
			off := i*frameSize + ch*2
			s := int16(binary.LittleEndian.Uint16(raw[off:]))
			out.channels[ch] = append(out.channels[ch], float64(s)/32768.0)
		}
	}
	return out, nil
}

// --- FLAC ---

func decodeFLAC(r io.Reader) (*decoded, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	info := stream.Info
	numChans := int(info.NChannels)
	bps := int(info.BitsPerSample)
	out := newDecoded(numChans, int(info.NSamples), int(info.SampleRate), bps)
	scale := math.Pow(2, float64(bps-1))

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing FLAC frame: %w", err)
		}
		for ch := 0; ch < numChans && ch < len(frame.Subframes); ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				out.channels[ch] = append(out.channels[ch], float64(s)/scale)
			}
		}
	}
	return out, nil
}

// --- Ogg Vorbis ---

func decodeOGG(r io.Reader) (*decoded, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	numChans := format.Channels
	if numChans <= 0 {
		return nil, errors.New("ogg stream declares no channels")
	}

	frames := len(data) / numChans
	out := newDecoded(numChans, frames, format.SampleRate, 0)
	for i := 0; i < frames*numChans; i++ {
		ch := i % numChans
		out.channels[ch] = append(out.channels[ch], float64(data[i]))
	}
	return out, nil
}
