package dsp

// Equalize applies the zero-forcing matrix w (U x A) to one subcarrier's
// received per-antenna vector y (length A), returning the per-user
// symbol estimate x_hat (length U): x_hat = W*y.
func Equalize(w Matrix, y []complex64) []complex64 {
	yv := NewMatrix(len(y), 1)
	for a, v := range y {
		yv.Set(a, 0, complex128(v))
	}
	xhat := w.Mul(yv)
	out := make([]complex64, w.Rows)
	for u := 0; u < w.Rows; u++ {
		out[u] = complex64(xhat.At(u, 0))
	}
	return out
}

// DemodulateQPSKLLR converts one user's equalized QPSK symbol into two
// soft LLRs (in-phase bit, quadrature bit). Positive LLR favors bit 0,
// negative favors bit 1 — the sign carries the hard decision, the
// magnitude a (here, unscaled) confidence.
func DemodulateQPSKLLR(sym complex64) [2]float32 {
	return [2]float32{real(sym), imag(sym)}
}
