// Package biquad implements second-order IIR filter sections and cascades.
//
// A [Section] is a single biquad in Direct Form II Transposed with two
// delay-line values of state. A [Chain] cascades sections in series to
// realize higher-order filters and is the streaming runtime for every
// designed filter in this module: weighting curves, octave-band
// bandpasses, and ad-hoc biquads all process audio through a Chain.
//
// Chains preserve state across block boundaries, so arbitrary-length
// chunks can be streamed through [Chain.ProcessBlock] with results
// identical to single-shot processing. State can be snapshotted and
// restored ([Chain.State], [Chain.SetState]), re-seeded to the unit-step
// steady state ([Chain.ResetToStep]), or warm-started from the first
// chunk of an analysis run ([Chain.WarmStart]).
package biquad
