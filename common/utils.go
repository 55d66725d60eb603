package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// AlignUp rounds size up to the next multiple of align. Align must be a power of two.
//
// Parameters:
//   - size: the value to round
//   - align: the power-of-two alignment
//
// Returns:
//   - uint64: size rounded up to align
func AlignUp(size, align uint64) uint64 {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

// PadTo4 returns data extended with zero bytes so its length is a multiple of four,
// the granularity required by queue buffer writes. The input is returned as-is when already aligned.
//
// Parameters:
//   - data: the bytes to pad
//
// Returns:
//   - []byte: the padded bytes
func PadTo4(data []byte) []byte {
	n := AlignUp(uint64(len(data)), 4)
	if n == uint64(len(data)) {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}
