package codec

// Little endian fields number bits LSB first: bit i is bit i%8 of byte i/8,
// and the first bit of the field is the least significant bit of the value.
// Big endian fields number bits MSB first: bit i is bit 7-i%8 of byte i/8,
// and the first bit of the field is the most significant bit of the value.

func extractLE(data []byte, start, size uint64) uint64 {
	var v uint64
	for i := range size {
		pos := start + i
		v |= uint64(data[pos>>3]>>(pos&7)&1) << i
	}
	return v
}

func extractBE(data []byte, start, size uint64) uint64 {
	var v uint64
	for i := range size {
		pos := start + i
		v = v<<1 | uint64(data[pos>>3]>>(7-pos&7)&1)
	}
	return v
}

func insertLE(data []byte, start, size, v uint64) {
	for i := range size {
		pos := start + i
		mask := byte(1) << (pos & 7)
		if v>>i&1 == 1 {
			data[pos>>3] |= mask
		} else {
			data[pos>>3] &^= mask
		}
	}
}

func insertBE(data []byte, start, size, v uint64) {
	for i := range size {
		pos := start + i
		mask := byte(0x80) >> (pos & 7)
		if v>>(size-1-i)&1 == 1 {
			data[pos>>3] |= mask
		} else {
			data[pos>>3] &^= mask
		}
	}
}

func sizeMask(size uint64) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return 1<<size - 1
}
