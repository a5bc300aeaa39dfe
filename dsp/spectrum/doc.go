// Package spectrum provides frequency-domain helpers: magnitude and power
// extraction from complex FFT bins and Welch averaged-periodogram PSD
// estimation.
package spectrum
