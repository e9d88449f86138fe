package wire

import (
	"encoding/binary"
	"math"
)

// SampleWidth is the wire-level byte width of one complex sample for
// every packet kind this implementation carries: two little-endian
// float32 rails. The reference format specifies complex int16 for the
// IQ kinds and complex float for ZF; this implementation standardizes
// every kind on one sample representation so a single codec serves the
// whole I/O plane, trading wire compactness for a uniform payload
// format across kinds.
const SampleWidth = 8

// EncodeComplex64 writes vals into dst as SampleWidth-byte little-endian
// (real, imag) float32 pairs. dst must be at least len(vals)*SampleWidth
// bytes.
func EncodeComplex64(dst []byte, vals []complex64) {
	for i, v := range vals {
		o := i * SampleWidth
		binary.LittleEndian.PutUint32(dst[o:o+4], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(dst[o+4:o+8], math.Float32bits(imag(v)))
	}
}

// DecodeComplex64 reads as many complex64 samples as fit in src.
func DecodeComplex64(src []byte) []complex64 {
	n := len(src) / SampleWidth
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		o := i * SampleWidth
		re := math.Float32frombits(binary.LittleEndian.Uint32(src[o : o+4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[o+4 : o+8]))
		out[i] = complex(re, im)
	}
	return out
}
