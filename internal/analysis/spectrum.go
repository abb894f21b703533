// Package analysis inspects recorded simulation series: dominant
// oscillation periods via the FFT, and phase-plane scatter plots of
// one tracked quantity against another.
package analysis

import (
	"math"
	"math/cmplx"
	"time"
)

// fft computes the discrete Fourier transform by radix-2 Cooley-Tukey.
// len(x) must be a power of two.
func fft(x []complex128) []complex128 {
	n := len(x)
	if n == 1 {
		return []complex128{x[0]}
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	fe := fft(even)
	fo := fft(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = fe[k] + w*fo[k]
		out[k+n/2] = fe[k] - w*fo[k]
	}
	return out
}

func largestPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Spectrum returns the magnitude spectrum of values. The input is
// truncated to the largest power-of-two length the transform can
// handle; only the positive-frequency half is returned.
func Spectrum(values []float64) []float64 {
	n := largestPowerOfTwo(len(values))
	if n < 2 {
		return nil
	}

	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = complex(values[i], 0)
	}
	f := fft(x)

	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(f[i])
	}
	return ps
}

// DominantPeriod estimates the period of the strongest oscillation in
// values sampled dt apart. The mean level is removed first so a slow
// offset does not mask the cycle. Cycles longer than half the window
// are not resolved; flat or too-short series return 0.
func DominantPeriod(values []float64, dt time.Duration) time.Duration {
	n := largestPowerOfTwo(len(values))
	if n < 8 || dt <= 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values[:n] {
		mean += v
	}
	mean /= float64(n)

	power := 0.0
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		d := values[i] - mean
		power += d * d
		x[i] = complex(d, 0)
	}
	if power == 0 || math.IsNaN(power) {
		return 0
	}

	f := fft(x)
	bestK, bestMag := 0, 0.0
	for k := 2; k < n/2; k++ {
		if mag := cmplx.Abs(f[k]); mag > bestMag {
			bestK, bestMag = k, mag
		}
	}
	if bestK == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bestK) * float64(dt))
}
