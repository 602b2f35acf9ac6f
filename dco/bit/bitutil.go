package bit

// GroupWidth is the number of output lines in a waveform pin group.
const GroupWidth = 4

// NibbleMask selects the low four bits of a lane mask.
const NibbleMask = uint8(0x0F)

// IsSet will check if the bit at the specified index is set to 1 or not.
func IsSet(index, mask uint8) bool {
	return ((mask >> index) & 1) == 1
}

// Set will return the passed mask with the bit at the specified index set to 1.
func Set(index, mask uint8) uint8 {
	return mask | (1 << index)
}

// Clear will return the passed mask with the bit at the specified index set to 0.
func Clear(index, mask uint8) uint8 {
	return mask & ^(1 << index)
}

// Invert4 returns the complement of a 4-bit lane mask, keeping the upper
// nibble clear. Toggling between a pattern and its Invert4 is what the
// waveform engine does on every half-period boundary.
func Invert4(mask uint8) uint8 {
	return ^mask & NibbleMask
}

// Complementary reports whether two lane masks are bitwise complements of
// each other within the 4-bit group.
func Complementary(a, b uint8) bool {
	return a&NibbleMask == Invert4(b)
}

// OnesCount4 returns the number of driven-high lines in a 4-bit lane mask.
func OnesCount4(mask uint8) int {
	count := 0
	for i := uint8(0); i < GroupWidth; i++ {
		if IsSet(i, mask) {
			count++
		}
	}
	return count
}
