package dsp

// EstimateCSI computes the channel state information matrix for one
// subcarrier: element-wise complex multiply of each antenna's FFT output
// at that subcarrier by the conjugate of the known pilot sequence,
// accumulated into the CSI matrix at (ue, antenna), per the design
// notes' semantics for the SIMD-optimized reference. Uplink pilots are
// orthogonal in time: pilot symbol i is assigned to UE i, so ueCount
// must not exceed len(pilotFFTBySymbol).
//
// pilotFFTBySymbol[sym][ant] is the FFT output of antenna ant's pilot
// OFDM symbol sym, already indexed at the target subcarrier. pilotSeq is
// the known transmitted pilot value at that subcarrier (shared by every
// UE, since separation comes from the time-domain pilot slot).
func EstimateCSI(pilotFFTBySymbol [][]complex64, pilotSeq complex64, ueCount, antCount int) Matrix {
	csi := NewMatrix(ueCount, antCount)
	conjPilot := complex128(complex(real(pilotSeq), -imag(pilotSeq)))
	for ue := 0; ue < ueCount; ue++ {
		for ant := 0; ant < antCount; ant++ {
			csi.Set(ue, ant, complex128(pilotFFTBySymbol[ue][ant])*conjPilot)
		}
	}
	return csi
}

// ZeroForcing computes the precoding matrix (U x A) that maps received
// per-antenna samples to per-user streams, given the CSI matrix (U x A).
// csi already holds H^T (csi[ue][ant] = H[ant][ue], the conjugation
// against the pilot having cancelled out in EstimateCSI), so recovering
// the A x U channel from user to antenna is a plain transpose, not a
// conjugate transpose — conjugating here would silently negate the
// imaginary part of every channel gain.
func ZeroForcing(csi Matrix) (Matrix, error) {
	h := csi.Transpose() // A x U: channel from user to antenna
	return PseudoInverse(h)
}
