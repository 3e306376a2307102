// internal/drive/words.go
package drive

// SplitWords splits a signed 32-bit value into its low and high 16-bit
// words. The drive stores dual registers low word first.
func SplitWords(v int32) (lo, hi uint16) {
	u := uint32(v)
	return uint16(u & 0xFFFF), uint16(u >> 16)
}

// JoinWords reconstructs a signed 32-bit value from its low and high
// words, two's complement preserved.
func JoinWords(lo, hi uint16) int32 {
	return int32(uint32(hi)<<16 | uint32(lo))
}
