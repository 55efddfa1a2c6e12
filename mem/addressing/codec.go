package addressing

// A LevelIndex is one page-table level field of a virtual address. Levels
// disabled by the configuration are not Present.
type LevelIndex struct {
	Value   uint64
	Present bool
}

// Level creates a present level index.
func Level(v uint64) LevelIndex {
	return LevelIndex{Value: v, Present: true}
}

// Decomposed is a virtual address split into its in-page offset and its
// level fields. Levels[0] is the level closest to the offset.
type Decomposed struct {
	Offset uint64
	Levels [MaxLevels]LevelIndex
}

// Decompose splits a raw address according to the configuration. Bits above
// the translated width are discarded.
func Decompose(raw uint64, c Config) Decomposed {
	d := Decomposed{Offset: raw & c.OffsetMask()}

	remaining := shiftRight(raw, c.OffsetFieldWidth)
	levelMask := c.LevelMask()

	for i := uint(0); i < c.Levels && i < MaxLevels; i++ {
		d.Levels[i] = Level(remaining & levelMask)
		remaining = shiftRight(remaining, c.LevelFieldWidth)
	}

	return d
}

// Compose reassembles a raw address. Absent levels contribute nothing.
func Compose(d Decomposed, c Config) uint64 {
	raw := d.Offset & c.OffsetMask()
	levelMask := c.LevelMask()

	for i := uint(0); i < c.Levels && i < MaxLevels; i++ {
		l := d.Levels[i]
		if !l.Present {
			continue
		}

		shift := c.OffsetFieldWidth + i*c.LevelFieldWidth
		raw |= shiftLeft(l.Value&levelMask, shift)
	}

	return raw
}

// Canonical tells if the bits above the translated width replicate the top
// translated bit, as x86-64 requires of its 48-bit virtual addresses.
func Canonical(raw uint64, c Config) bool {
	width := c.VirtualBitWidth()
	if width >= AddressBitWidth || width == 0 {
		return true
	}

	high := raw >> width
	signBit := (raw >> (width - 1)) & 1

	if signBit == 0 {
		return high == 0
	}

	return high == lowMask(AddressBitWidth-width)
}

// Truncate clears the bits above the translated width.
func Truncate(raw uint64, c Config) uint64 {
	return raw & lowMask(c.VirtualBitWidth())
}

func shiftRight(v uint64, n uint) uint64 {
	if n >= 64 {
		return 0
	}

	return v >> n
}

func shiftLeft(v uint64, n uint) uint64 {
	if n >= 64 {
		return 0
	}

	return v << n
}
