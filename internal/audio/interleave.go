package audio

import "encoding/binary"

// Interleave writes left/right pairs into dst and returns dst[:2*len(left)].
// left and right must be the same length; dst must hold both.
func Interleave(dst, left, right []int16) []int16 {
	dst = dst[:2*len(left)]
	for i := range left {
		dst[2*i] = left[i]
		dst[2*i+1] = right[i]
	}
	return dst
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	PutSamples(buf, samples)
	return buf
}

// PutSamples encodes samples into buf as little-endian int16. buf must hold
// len(samples)*2 bytes.
func PutSamples(buf []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
}
