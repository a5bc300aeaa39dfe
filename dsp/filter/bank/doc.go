// Package bank provides ANSI S1.11 octave and third-octave filter banks.
//
// Center frequencies follow the base-10 system: f_m = 1000 * 10^(3x/10)
// for octave bands and f_m = 1000 * 10^(x/10) for third-octave bands.
// Each band is a single high-order Butterworth bandpass cascade whose
// design edges are widened to compensate the finite-order droop at the
// nominal edges, targeting 0.05 dB edge ripple.
//
// Bands too close to Nyquist for the configured sample rate are excluded
// or, when individually infeasible, skipped with a logged warning. The
// bank preserves per-band filter state across chunks, so it can be
// driven block-by-block during streaming analysis.
package bank
