// Package addressing describes the geometry of the simulated machine and
// converts raw addresses to and from their page-table level fields.
package addressing

import (
	"errors"
	"fmt"
	"math/bits"
)

// AddressBitWidth is the width of the raw integers that carry addresses.
const AddressBitWidth = 64

// MaxLevels is the maximum number of page-table levels.
const MaxLevels = 4

// MinOffsetFieldWidth keeps frame bases aligned enough for page-table entry
// flags to live in the low bits.
const MinOffsetFieldWidth = 4

// ErrInvalidConfig is returned when a configuration violates an invariant.
var ErrInvalidConfig = errors.New("invalid address configuration")

// Config is the immutable description of the machine's address geometry.
// A Config is created once at startup and handed by value to every
// component constructor.
type Config struct {
	BitMode          BitMode
	LevelFieldWidth  uint
	OffsetFieldWidth uint
	Levels           uint
	PageSize         uint64
	FrameCount       uint64
	StackBase        uint64
	StackSize        uint64
}

// Validate checks the invariants of the configuration.
func (c Config) Validate() error {
	if !c.BitMode.Valid() {
		return fmt.Errorf("%w: unsupported bit-mode %d",
			ErrInvalidConfig, uint8(c.BitMode))
	}

	if c.Levels < 1 || c.Levels > MaxLevels {
		return fmt.Errorf("%w: level count %d not in [1, %d]",
			ErrInvalidConfig, c.Levels, MaxLevels)
	}

	if c.LevelFieldWidth == 0 {
		return fmt.Errorf("%w: level field width must be positive",
			ErrInvalidConfig)
	}

	if c.VirtualBitWidth() > AddressBitWidth {
		return fmt.Errorf("%w: %d offset bits and %d levels of %d bits "+
			"exceed %d address bits", ErrInvalidConfig,
			c.OffsetFieldWidth, c.Levels, c.LevelFieldWidth, AddressBitWidth)
	}

	if c.OffsetFieldWidth >= AddressBitWidth ||
		c.PageSize != uint64(1)<<c.OffsetFieldWidth {
		return fmt.Errorf("%w: page size %d is not 2^%d",
			ErrInvalidConfig, c.PageSize, c.OffsetFieldWidth)
	}

	if c.OffsetFieldWidth < MinOffsetFieldWidth {
		return fmt.Errorf("%w: offset width %d leaves no room for entry flags",
			ErrInvalidConfig, c.OffsetFieldWidth)
	}

	if c.FrameCount == 0 {
		return fmt.Errorf("%w: frame count must be positive",
			ErrInvalidConfig)
	}

	hi, size := bits.Mul64(c.FrameCount, c.PageSize)
	if hi != 0 {
		return fmt.Errorf("%w: physical memory overflows", ErrInvalidConfig)
	}

	if c.StackBase > size || c.StackSize > size-c.StackBase {
		return fmt.Errorf("%w: stack [0x%x, +%d) outside physical memory",
			ErrInvalidConfig, c.StackBase, c.StackSize)
	}

	return nil
}

// VirtualBitWidth is the number of address bits consumed by translation.
func (c Config) VirtualBitWidth() uint {
	return c.OffsetFieldWidth + c.Levels*c.LevelFieldWidth
}

// OffsetMask selects the in-page offset of an address.
func (c Config) OffsetMask() uint64 {
	return lowMask(c.OffsetFieldWidth)
}

// LevelMask selects one level field once shifted to the low bits.
func (c Config) LevelMask() uint64 {
	return lowMask(c.LevelFieldWidth)
}

// LevelCapacity is the number of distinct index values of a level field.
func (c Config) LevelCapacity() uint64 {
	return c.LevelMask() + 1
}

// MemorySize is the number of bytes backed by the frame pool.
func (c Config) MemorySize() uint64 {
	return c.FrameCount * c.PageSize
}

// PhysBitWidth is the smallest address width that covers the frame pool.
func (c Config) PhysBitWidth() uint {
	return uint(bits.Len64(c.MemorySize() - 1))
}

// PhysicalSize is 2^PhysBitWidth.
func (c Config) PhysicalSize() uint64 {
	return uint64(1) << c.PhysBitWidth()
}

// VirtualPageCount is the number of pages a single address space can map.
func (c Config) VirtualPageCount() uint64 {
	return uint64(1) << (c.Levels * c.LevelFieldWidth)
}

// InStack tells if a physical address falls in the reserved stack range.
func (c Config) InStack(addr uint64) bool {
	return addr >= c.StackBase && addr-c.StackBase < c.StackSize
}

func lowMask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << width) - 1
}
