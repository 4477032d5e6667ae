package binutil

import "math"

// ParseWords unpacks a big-endian register payload into 16-bit words.
// A trailing odd byte is dropped.
func ParseWords(buf []byte) []uint16 {
	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = ParseUint16BigEndian(buf[i*2:])
	}
	return words
}

// WordsToBytes packs words back into a big-endian byte slice.
func WordsToBytes(words []uint16) []byte {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		WriteUint16(buf[i*2:], w)
	}
	return buf
}

func ParseUint16BigEndian(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

// AB CD, high word first
func Uint32HighFirst(words []uint16) uint32 {
	return uint32(words[0])<<16 | uint32(words[1])
}

// CD AB, low word first
func Uint32LowFirst(words []uint16) uint32 {
	return uint32(words[1])<<16 | uint32(words[0])
}

// AB CD EF GH
func Uint64HighFirst(words []uint16) uint64 {
	return uint64(words[0])<<48 |
		uint64(words[1])<<32 |
		uint64(words[2])<<16 |
		uint64(words[3])
}

func Float32HighFirst(words []uint16) float32 {
	return math.Float32frombits(Uint32HighFirst(words))
}

func Float32LowFirst(words []uint16) float32 {
	return math.Float32frombits(Uint32LowFirst(words))
}

// WriteUint16 编码
func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

// Float32ToWords splits a float into high and low words.
func Float32ToWords(value float32) []uint16 {
	bits := math.Float32bits(value)
	return []uint16{uint16(bits >> 16), uint16(bits)}
}

// Dup 复制
func Dup(words []uint16) []uint16 {
	out := make([]uint16, len(words))
	copy(out, words)
	return out
}
