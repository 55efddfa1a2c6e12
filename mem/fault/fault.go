// Package fault defines the exceptions raised by the simulated memory
// subsystem. Faults are plain values returned as errors; nothing in the
// memory subsystem panics on a fault.
package fault

import (
	"errors"
	"fmt"
)

// Kind enumerates the fault variants.
type Kind int

// The fault kinds, mirroring the hardware exceptions the MMU can raise.
const (
	BufferOverflow Kind = iota
	StackOverflow
	NullPointerDeref
	AddrOutOfRange
	Unrecoverable
)

var kindNames = [...]string{
	BufferOverflow:   "BufferOverflow",
	StackOverflow:    "StackOverflow",
	NullPointerDeref: "NullPointerDeref",
	AddrOutOfRange:   "AddrOutOfRange",
	Unrecoverable:    "Unrecoverable",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// HasAddress tells if faults of this kind carry the faulting address.
func (k Kind) HasAddress() bool {
	return k != Unrecoverable
}

// A Fault is an immutable record of a failed memory operation.
type Fault struct {
	Kind    Kind
	Address uint64
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if !f.Kind.HasAddress() {
		return "fault: " + f.Kind.String()
	}

	return fmt.Sprintf("fault: %s at 0x%x", f.Kind, f.Address)
}

// NewBufferOverflow reports an access running past an allocation.
func NewBufferOverflow(addr uint64) *Fault {
	return &Fault{Kind: BufferOverflow, Address: addr}
}

// NewStackOverflow reports a push beyond the stack capacity.
func NewStackOverflow(addr uint64) *Fault {
	return &Fault{Kind: StackOverflow, Address: addr}
}

// NewNullPointerDeref reports a translation that reached a non-present
// entry.
func NewNullPointerDeref(addr uint64) *Fault {
	return &Fault{Kind: NullPointerDeref, Address: addr}
}

// NewAddrOutOfRange reports an address that cannot be resolved.
func NewAddrOutOfRange(addr uint64) *Fault {
	return &Fault{Kind: AddrOutOfRange, Address: addr}
}

// NewUnrecoverable reports a violated invariant, such as popping an empty
// stack.
func NewUnrecoverable() *Fault {
	return &Fault{Kind: Unrecoverable}
}

// As extracts the fault carried by err, if any.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}

	return nil, false
}

// Is tells if err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	f, ok := As(err)

	return ok && f.Kind == kind
}
