package addressing

import "fmt"

// Space tells which address space a raw address belongs to.
type Space uint8

// The two address spaces.
const (
	Physical Space = iota
	Virtual
)

func (s Space) String() string {
	if s == Virtual {
		return "virtual"
	}

	return "physical"
}

// An Address is a raw integer tagged with its address space. Virtual
// addresses must be translated before they can index physical memory.
type Address struct {
	Raw   uint64
	Space Space
}

// Phys tags a raw physical address.
func Phys(raw uint64) Address {
	return Address{Raw: raw, Space: Physical}
}

// Virt tags a raw virtual address.
func Virt(raw uint64) Address {
	return Address{Raw: raw, Space: Virtual}
}

// IsVirtual tells if the address must be translated.
func (a Address) IsVirtual() bool {
	return a.Space == Virtual
}

func (a Address) String() string {
	if a.IsVirtual() {
		return fmt.Sprintf("v0x%x", a.Raw)
	}

	return fmt.Sprintf("0x%x", a.Raw)
}
