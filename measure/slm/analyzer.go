package slm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-slm/dsp/filter/bank"
	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
	"github.com/cwbudde/algo-slm/dsp/filter/weighting"
)

// BlockResult is the per-block output of a time-domain analysis run.
type BlockResult struct {
	// Time is the block start in seconds from the beginning of the run.
	Time float64
	// Leq is the block's equivalent level in dB.
	Leq float64
	// Lp is the time-weighted level from the detector in dB.
	Lp float64
	// Bands holds per-band Leq values when band analysis is enabled.
	Bands []float64
	// BandFreqs holds the matching band center frequencies in Hz.
	BandFreqs []float64
}

// Analyzer runs block-oriented level analysis over one Source.
//
// Each Analyzer owns a fresh filter, bank and detector graph; it must
// not be shared across concurrent runs.
type Analyzer struct {
	cfg Config
	src Source
}

// NewAnalyzer wraps src with the given analysis options.
func NewAnalyzer(src Source, opts ...Option) (*Analyzer, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &Analyzer{cfg: cfg, src: src}, nil
}

// Config returns the effective configuration after options and defaults.
func (a *Analyzer) Config() Config { return a.cfg }

// blockSamples returns the analysis block length in samples.
func (a *Analyzer) blockSamples() int {
	return int(a.src.SampleRate() * a.cfg.BlockSizeMS / 1000)
}

// TotalBlocks estimates the number of blocks a Run will emit, or 0 when
// the source length is unknown.
func (a *Analyzer) TotalBlocks() int {
	sizer, ok := a.src.(Sizer)
	if !ok {
		return 0
	}

	bs := a.blockSamples()
	if bs <= 0 {
		return 0
	}

	return int((sizer.TotalSamples() + int64(bs) - 1) / int64(bs))
}

// Run starts a lazy, finite, non-restartable stream of BlockResult.
//
// The first block seeds the weighting filter, band bank and detector
// before any block is scored, so block zero is emitted without the usual
// start-up transient. Cancellation via ctx is checked between blocks and
// stops the stream without error.
func (a *Analyzer) Run(ctx context.Context) (*Stream, error) {
	sampleRate := a.src.SampleRate()
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %f", ErrConfiguration, sampleRate)
	}

	blockSize := a.blockSamples()
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %g ms rounds to zero samples", ErrData, a.cfg.BlockSizeMS)
	}

	chain, err := weighting.New(a.cfg.Weighting, sampleRate)
	if err != nil {
		return nil, err
	}

	var bandBank *bank.Bank
	if a.cfg.BandAnalysis {
		bandBank, err = bank.New(a.cfg.BandResolution, sampleRate, bank.WithOrder(a.cfg.BandOrder))
		if err != nil {
			return nil, err
		}
	}

	st := &Stream{
		ctx:       ctx,
		cfg:       a.cfg,
		src:       a.src,
		chain:     chain,
		bank:      bandBank,
		detector:  NewDetector(a.cfg.Speed, sampleRate, a.cfg.RefPressure),
		blockSize: blockSize,
		blockDur:  a.cfg.BlockSizeMS / 1000,
		raw:       make([]float64, blockSize),
		weighted:  make([]float64, blockSize),
	}

	return st, nil
}

// Stream is a pull-based sequence of BlockResult values.
type Stream struct {
	ctx context.Context
	cfg Config
	src Source

	chain    *biquad.Chain
	bank     *bank.Bank
	detector *Detector

	blockSize int
	blockDur  float64
	blockIdx  int
	seeded    bool
	done      bool
	err       error

	raw      []float64
	weighted []float64

	// pending holds the seed block awaiting emission as block zero.
	pending []float64
}

// Next returns the next block result. It reports false when the stream
// is exhausted, cancelled, closed, or failed; check Err afterwards.
func (s *Stream) Next() (BlockResult, bool) {
	if s.done {
		return BlockResult{}, false
	}

	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			s.done = true
			return BlockResult{}, false
		default:
		}
	}

	if !s.seeded {
		if !s.seed() {
			return BlockResult{}, false
		}
	}

	block := s.pending
	s.pending = nil

	if block == nil {
		n, err := s.src.ReadBlock(s.raw)
		if err != nil && !errors.Is(err, io.EOF) {
			s.err = err
			s.done = true

			return BlockResult{}, false
		}
		if n == 0 {
			s.done = true
			return BlockResult{}, false
		}

		// A short final read is zero padded so every block is scored
		// over the same duration.
		if n < len(s.raw) {
			clear(s.raw[n:])
		}

		block = s.raw
		vecmath.ScaleBlockInPlace(block, s.cfg.Calibration)
	}

	result := s.score(block)
	s.blockIdx++

	return result, true
}

// seed reads the first block, warm-starts every filter and the detector
// with it, and parks it for emission as block zero.
func (s *Stream) seed() bool {
	n, err := s.src.ReadBlock(s.raw)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		s.done = true

		return false
	}
	if n == 0 {
		s.done = true
		return false
	}

	if n < len(s.raw) {
		clear(s.raw[n:])
	}

	seedBlock := s.raw
	vecmath.ScaleBlockInPlace(seedBlock, s.cfg.Calibration)

	s.chain.WarmStart(seedBlock)
	if s.bank != nil {
		s.bank.InitializeState(seedBlock)
	}
	s.detector.Process(seedBlock)

	s.pending = append([]float64(nil), seedBlock...)
	s.seeded = true

	return true
}

// score computes one BlockResult from a calibrated block.
func (s *Stream) score(block []float64) BlockResult {
	weighted := s.weighted[:len(block)]
	s.chain.ProcessBlockTo(weighted, block)

	refSq := s.cfg.RefPressure * s.cfg.RefPressure

	result := BlockResult{
		Time: float64(s.blockIdx) * s.blockDur,
		Leq:  meanSquareDB(weighted, refSq),
		Lp:   s.detector.Process(weighted),
	}

	if s.bank != nil {
		bandOut := s.bank.ProcessChunk(block)
		result.Bands = make([]float64, len(bandOut))
		for i, col := range bandOut {
			result.Bands[i] = meanSquareDB(col, refSq)
		}
		result.BandFreqs = s.bank.CenterFreqs()
	}

	return result
}

// Err returns the terminal error of the stream, if any. Exhaustion and
// cancellation are not errors.
func (s *Stream) Err() error { return s.err }

// Close stops the stream and releases the source.
func (s *Stream) Close() error {
	s.done = true
	return s.src.Close()
}

func meanSquareDB(block []float64, refSq float64) float64 {
	sum := 0.0
	for _, x := range block {
		sum += x * x
	}

	mean := sum / float64(len(block))

	return 10 * math.Log10(mean/refSq+1e-30)
}
