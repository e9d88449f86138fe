// Package dsp implements the pipeline's computational kernels as pure
// functions with declared input/output shapes: forward FFT, CSI
// estimation and zero-forcing, demodulation to soft LLRs, and a bit
// decoder. These stand in for the reference's SIMD-optimized, opaque DSP
// routines — semantics only, no intrinsics, per the design notes'
// direction that vectorization is an implementation choice, not a
// contract.
package dsp

import "fmt"

// Matrix is a dense complex matrix in row-major order, used for the
// small (U x A) channel and precoding matrices; U and A are small enough
// (tens) that a naive Gauss-Jordan inverse is more than fast enough and
// keeps the numerics easy to verify against the noise-free round-trip
// law.
type Matrix struct {
	Rows, Cols int
	Data       []complex128
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns m[r][c].
func (m Matrix) At(r, c int) complex128 { return m.Data[r*m.Cols+c] }

// Set assigns m[r][c] = v.
func (m Matrix) Set(r, c int, v complex128) { m.Data[r*m.Cols+c] = v }

// ConjTranspose returns the conjugate transpose (Hermitian adjoint).
func (m Matrix) ConjTranspose() Matrix {
	out := NewMatrix(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(c, r, cmplxConj(m.At(r, c)))
		}
	}
	return out
}

// Transpose returns the plain transpose (no conjugation).
func (m Matrix) Transpose() Matrix {
	out := NewMatrix(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(c, r, m.At(r, c))
		}
	}
	return out
}

func cmplxConj(v complex128) complex128 { return complex(real(v), -imag(v)) }

// Mul returns m * o. Panics if the inner dimensions disagree.
func (m Matrix) Mul(o Matrix) Matrix {
	if m.Cols != o.Rows {
		panic(fmt.Sprintf("dsp: matrix mul dimension mismatch (%dx%d)*(%dx%d)", m.Rows, m.Cols, o.Rows, o.Cols))
	}
	out := NewMatrix(m.Rows, o.Cols)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < o.Cols; c++ {
			var acc complex128
			for k := 0; k < m.Cols; k++ {
				acc += m.At(r, k) * o.At(k, c)
			}
			out.Set(r, c, acc)
		}
	}
	return out
}

// Inverse computes the inverse of a square matrix via Gauss-Jordan
// elimination with partial pivoting. Returns an error if m is singular
// (or not square).
func (m Matrix) Inverse() (Matrix, error) {
	n := m.Rows
	if m.Cols != n {
		return Matrix{}, fmt.Errorf("dsp: inverse requires square matrix, got %dx%d", m.Rows, m.Cols)
	}

	aug := NewMatrix(n, 2*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			aug.Set(r, c, m.At(r, c))
		}
		aug.Set(r, n+r, 1)
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := cmplxAbs(aug.At(col, col))
		for r := col + 1; r < n; r++ {
			if v := cmplxAbs(aug.At(r, col)); v > best {
				best = v
				pivot = r
			}
		}
		if best == 0 {
			return Matrix{}, fmt.Errorf("dsp: matrix is singular at column %d", col)
		}
		if pivot != col {
			for c := 0; c < 2*n; c++ {
				aug.Data[col*aug.Cols+c], aug.Data[pivot*aug.Cols+c] = aug.Data[pivot*aug.Cols+c], aug.Data[col*aug.Cols+c]
			}
		}

		pv := aug.At(col, col)
		for c := 0; c < 2*n; c++ {
			aug.Set(col, c, aug.At(col, c)/pv)
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug.At(r, col)
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*n; c++ {
				aug.Set(r, c, aug.At(r, c)-factor*aug.At(col, c))
			}
		}
	}

	out := NewMatrix(n, n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out.Set(r, c, aug.At(r, n+c))
		}
	}
	return out, nil
}

func cmplxAbs(v complex128) float64 {
	re, im := real(v), imag(v)
	return re*re + im*im
}

// PseudoInverse returns the left Moore-Penrose pseudo-inverse of m (an
// A x U channel matrix, A >= U) via the normal equations:
// pinv(H) = (H^H H)^-1 H^H, the standard zero-forcing linear receiver.
func PseudoInverse(h Matrix) (Matrix, error) {
	hh := h.ConjTranspose()
	gram := hh.Mul(h)
	inv, err := gram.Inverse()
	if err != nil {
		return Matrix{}, fmt.Errorf("dsp: zero-forcing pseudo-inverse: %w", err)
	}
	return inv.Mul(hh), nil
}
