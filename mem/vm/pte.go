package vm

import "strings"

// Flag is one of the status bits of a page-table entry.
type Flag uint64

// The entry flags. They occupy the low bits of the entry, which are always
// zero in a page-aligned frame base.
const (
	// FlagPresent is set when the entry maps a frame.
	FlagPresent Flag = 1 << iota

	// FlagWritable is set if the page can be written to.
	FlagWritable

	// FlagAccessed is set by translation when the page is accessed.
	FlagAccessed

	// FlagDirty is set by translation when the page is written to.
	FlagDirty
)

const flagMask = uint64(FlagPresent | FlagWritable | FlagAccessed | FlagDirty)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagPresent, "P"},
	{FlagWritable, "W"},
	{FlagAccessed, "A"},
	{FlagDirty, "D"},
}

func (f Flag) String() string {
	var b strings.Builder

	for _, n := range flagNames {
		if f&n.flag != 0 {
			b.WriteString(n.name)
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}

// PTE is a 64-bit page-table entry holding a frame base address and flags.
type PTE uint64

// NewPTE creates an entry. The low bits of frameBase that overlap the flags
// are dropped; callers pass page-aligned addresses.
func NewPTE(frameBase uint64, flags Flag) PTE {
	return PTE(frameBase&^flagMask | uint64(flags)&flagMask)
}

// Flag tells if the flag is set.
func (p PTE) Flag(f Flag) bool {
	return uint64(p)&uint64(f) != 0
}

// Flags returns all the flags of the entry.
func (p PTE) Flags() Flag {
	return Flag(uint64(p) & flagMask)
}

// Set raises a flag.
func (p *PTE) Set(f Flag) {
	*p |= PTE(uint64(f) & flagMask)
}

// Clear lowers a flag.
func (p *PTE) Clear(f Flag) {
	*p &^= PTE(uint64(f) & flagMask)
}

// FrameBase returns the physical address of the mapped frame.
func (p PTE) FrameBase() uint64 {
	return uint64(p) &^ flagMask
}
