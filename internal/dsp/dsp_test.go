package dsp

import (
	"math/cmplx"
	"testing"
)

func TestFFTOfDCSignalIsSingleBin(t *testing.T) {
	x := make([]complex64, 8)
	for i := range x {
		x[i] = complex(1, 0)
	}
	out := FFT(x)
	if cmplx.Abs(complex128(out[0])-complex128(complex64(complex(8, 0)))) > 1e-4 {
		t.Fatalf("expected bin 0 = 8, got %v", out[0])
	}
	for k := 1; k < len(out); k++ {
		if cmplx.Abs(complex128(out[k])) > 1e-4 {
			t.Fatalf("expected bin %d ~ 0, got %v", k, out[k])
		}
	}
}

func TestMatrixInverseRoundTrip(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Set(0, 0, complex(2, 0))
	m.Set(0, 1, complex(1, 0))
	m.Set(1, 0, complex(1, 0))
	m.Set(1, 1, complex(3, 0))

	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	identity := m.Mul(inv)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			want := complex128(0)
			if r == c {
				want = 1
			}
			if cmplx.Abs(identity.At(r, c)-want) > 1e-9 {
				t.Fatalf("m*inv[%d][%d] = %v, want %v", r, c, identity.At(r, c), want)
			}
		}
	}
}

func TestZeroForcingRecoversUserSymbolsNoiseFree(t *testing.T) {
	const ants, ues = 4, 2

	// A fixed, well-conditioned synthetic channel.
	h := NewMatrix(ants, ues)
	seed := []complex128{1, 0.2, -0.3, 0.5, 0.1, 1, 0.4, -0.2}
	for a := 0; a < ants; a++ {
		for u := 0; u < ues; u++ {
			h.Set(a, u, seed[a*ues+u])
		}
	}

	txBits := []byte{0, 1, 1, 0} // 2 bits per UE (1 QPSK symbol each)
	txSyms := ModulateQPSK(txBits)
	if len(txSyms) != ues {
		t.Fatalf("expected %d tx symbols, got %d", ues, len(txSyms))
	}

	// Noise-free channel: y = H * x.
	xv := NewMatrix(ues, 1)
	for u, s := range txSyms {
		xv.Set(u, 0, complex128(s))
	}
	yv := h.Mul(xv)
	y := make([]complex64, ants)
	for a := 0; a < ants; a++ {
		y[a] = complex64(yv.At(a, 0))
	}

	w, err := PseudoInverse(h)
	if err != nil {
		t.Fatalf("pseudo-inverse: %v", err)
	}
	xhat := Equalize(w, y)

	llrs := make([][2]float32, ues)
	for u, s := range xhat {
		llrs[u] = DemodulateQPSKLLR(s)
	}
	gotBits := DecodeQPSKLLRs(llrs)

	if len(gotBits) != len(txBits) {
		t.Fatalf("expected %d decoded bits, got %d", len(txBits), len(gotBits))
	}
	for i := range txBits {
		if gotBits[i] != txBits[i] {
			t.Fatalf("bit %d: want %d, got %d", i, txBits[i], gotBits[i])
		}
	}
}
