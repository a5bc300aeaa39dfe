// Package weighting synthesizes A, C, and Z frequency weighting filters
// per IEC 61672 for arbitrary sample rates.
//
// Rather than mapping the whole analog prototype with the bilinear
// transform, the design is hybrid: the low-frequency poles (f1, f2, f4)
// are exact closed-form bilinear sections, the f5 double pole near
// 12.2 kHz uses the matched z-transform to avoid frequency cramping at
// low sample rates, and a single parametric correction biquad absorbs
// the residual ripple. The effective f5 pole and the correction stage's
// center, gain, and Q are fitted with a Nelder-Mead search minimizing
// the worst-case deviation from the analytic curve across the ISO
// preferred frequencies, with errors above 1 kHz weighted 50x.
//
// The optimizer's initial guess, tolerance, and iteration cap are fixed
// constants, so designs are reproducible; results are cached per
// (sample rate, type) pair. All cascades are normalized to 0 dB at 1 kHz.
package weighting
