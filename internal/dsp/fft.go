package dsp

import "math"

// FFT computes the forward discrete Fourier transform of one antenna's
// time-domain OFDM symbol, mapping the C_all time samples in x to C_all
// frequency bins. It is a direct O(n^2) DFT rather than a radix-2/mixed-
// radix FFT: correctness over the reference's SIMD-tuned Cooley-Tukey
// implementation, since the kernel's contract is its input/output shape,
// not its internal algorithm.
func FFT(x []complex64) []complex64 {
	n := len(x)
	out := make([]complex64, n)
	for k := 0; k < n; k++ {
		var acc complex128
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			twiddle := complex(math.Cos(angle), math.Sin(angle))
			acc += complex128(x[t]) * twiddle
		}
		out[k] = complex64(acc)
	}
	return out
}
