// Package slm implements sound level meter analysis: block-oriented
// streaming of weighted equivalent and time-weighted levels, optional
// octave-band levels, and Welch PSD / spectrogram estimation over an
// audio source.
package slm
