package dsp

// DecodeQPSKLLRs converts a sequence of soft LLR pairs back into the
// hard bit stream: bit=0 when the LLR is non-negative, bit=1 otherwise.
// This stands in for the reference's LDPC decoder — the pipeline's
// contract only requires an opaque decode kernel with this shape;
// forward error correction is out of scope, so on the noise-free channel
// model of the round-trip law this recovers the transmitted bits
// exactly.
func DecodeQPSKLLRs(llrs [][2]float32) []byte {
	bits := make([]byte, 0, 2*len(llrs))
	for _, pair := range llrs {
		for _, llr := range pair {
			if llr >= 0 {
				bits = append(bits, 0)
			} else {
				bits = append(bits, 1)
			}
		}
	}
	return bits
}

// ModulateQPSK maps a bit stream (even length) to QPSK symbols using the
// same {+1,-1} per-rail convention DemodulateQPSKLLR/DecodeQPSKLLRs
// assume, so a synthetic test frame's transmitted bits and its decoded
// bits can be compared directly.
func ModulateQPSK(bits []byte) []complex64 {
	syms := make([]complex64, 0, len(bits)/2)
	for i := 0; i+1 < len(bits); i += 2 {
		re := bitToRail(bits[i])
		im := bitToRail(bits[i+1])
		syms = append(syms, complex(re, im))
	}
	return syms
}

func bitToRail(b byte) float32 {
	if b == 0 {
		return 1
	}
	return -1
}
