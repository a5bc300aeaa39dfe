package slm

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Source supplies sequential mono sample blocks at a fixed sample rate.
//
// ReadBlock fills dst with up to len(dst) samples and returns the number
// of samples written; it returns io.EOF when the source is exhausted.
// Multi-channel material must be averaged to mono by the Source.
type Source interface {
	SampleRate() float64
	ReadBlock(dst []float64) (int, error)
	Close() error
}

// Sizer is implemented by sources that know their total length up front.
type Sizer interface {
	TotalSamples() int64
}

// SliceSource serves an in-memory sample slice as a Source.
type SliceSource struct {
	samples    []float64
	sampleRate float64
	pos        int
}

// NewSliceSource wraps samples at the given sample rate. The slice is
// not copied; the caller must not mutate it while the source is in use.
func NewSliceSource(samples []float64, sampleRate float64) *SliceSource {
	return &SliceSource{samples: samples, sampleRate: sampleRate}
}

func (s *SliceSource) SampleRate() float64 { return s.sampleRate }

func (s *SliceSource) TotalSamples() int64 { return int64(len(s.samples)) }

func (s *SliceSource) ReadBlock(dst []float64) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}

	n := copy(dst, s.samples[s.pos:])
	s.pos += n

	return n, nil
}

func (s *SliceSource) Close() error {
	s.pos = len(s.samples)
	return nil
}

// WAVSource streams a PCM WAV file as mono float64 samples in [-1, 1].
// Multi-channel files are averaged to mono frame-by-frame.
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	scale    float64
	frames   int64

	// carry holds decoded mono samples not yet consumed by ReadBlock.
	carry []float64
}

// OpenWAV opens path for streaming analysis.
func OpenWAV(path string) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("open wav %q: not a valid wav file", path)
	}

	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("open wav %q: %w", path, err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		file.Close()
		return nil, fmt.Errorf("open wav %q: no channels", path)
	}

	bytesPerSample := int64(decoder.BitDepth) / 8
	frames := int64(0)
	if bytesPerSample > 0 {
		frames = int64(decoder.PCMSize) / bytesPerSample / int64(channels)
	}

	return &WAVSource{
		file:     file,
		decoder:  decoder,
		channels: channels,
		scale:    1 / float64(int64(1)<<(decoder.BitDepth-1)),
		frames:   frames,
		buf: &audio.IntBuffer{
			Format: decoder.Format(),
			Data:   make([]int, 8192*channels),
		},
	}, nil
}

func (s *WAVSource) SampleRate() float64 { return float64(s.decoder.SampleRate) }

// TotalSamples returns the mono frame count declared by the file header.
func (s *WAVSource) TotalSamples() int64 { return s.frames }

func (s *WAVSource) ReadBlock(dst []float64) (int, error) {
	written := 0

	for written < len(dst) {
		if len(s.carry) > 0 {
			n := copy(dst[written:], s.carry)
			s.carry = s.carry[n:]
			written += n

			continue
		}

		n, err := s.decoder.PCMBuffer(s.buf)
		if n == 0 {
			if written > 0 {
				return written, nil
			}
			if err != nil && err != io.EOF {
				return 0, fmt.Errorf("read wav: %w", err)
			}

			return 0, io.EOF
		}

		frames := n / s.channels
		mono := make([]float64, frames)
		for f := range frames {
			sum := 0.0
			for ch := range s.channels {
				sum += float64(s.buf.Data[f*s.channels+ch])
			}
			mono[f] = sum / float64(s.channels) * s.scale
		}

		s.carry = mono
	}

	return written, nil
}

func (s *WAVSource) Close() error {
	return s.file.Close()
}
