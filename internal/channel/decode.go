package channel

import "encoding/binary"

// decodeImagePixels byte-swaps a big-endian payload into dst, widening
// U16 words to uint32 storage (§4.4 step 2: "byte-swap each pixel from
// big-endian in place").
func decodeImagePixels(payload []byte, wide bool, dst []uint32) {
	if wide {
		for i := range dst {
			dst[i] = binary.BigEndian.Uint32(payload[i*4:])
		}
		return
	}
	for i := range dst {
		dst[i] = uint32(binary.BigEndian.Uint16(payload[i*2:]))
	}
}

// decodeHistogramCounts byte-swaps a big-endian 4-byte-per-bin payload
// into dst (§4.5: payload size = bin_size * 4, big-endian).
func decodeHistogramCounts(payload []byte, dst []uint32) {
	for i := range dst {
		dst[i] = binary.BigEndian.Uint32(payload[i*4:])
	}
}
