package machine

import (
	"fmt"
	"strings"

	"github.com/sarchlab/mmusim/mem/addressing"
)

// A Ref designates a location either by address or by the label given at
// allocation time.
type Ref struct {
	Address addressing.Address
	Label   string
}

// At refers to an address.
func At(a addressing.Address) Ref {
	return Ref{Address: a}
}

// Labeled refers to a labeled allocation.
func Labeled(label string) Ref {
	return Ref{Label: label}
}

func (r Ref) String() string {
	if r.Label != "" {
		return r.Label
	}

	return r.Address.String()
}

// A Request is one operation issued to a Machine.
type Request interface {
	// Signal returns the signal reported for the request.
	Signal() Signal
}

// Alloc reserves len(Bytes) bytes and stores Bytes there. Without At, the
// first free range is used.
type Alloc struct {
	Bytes []int8
	At    *Ref
	Label string
}

// Dealloc releases the allocation starting at At.
type Dealloc struct {
	At Ref
}

// Write stores one value at an allocated address.
type Write struct {
	At    Ref
	Value int8
}

// Read loads one value from an allocated address.
type Read struct {
	At Ref
}

// Push pushes a value on the stack.
type Push struct {
	Value int8
}

// Pop pops a value from the stack.
type Pop struct{}

// Exit terminates the process, releasing its allocations.
type Exit struct{}

// Debug reports the machine state to the hooks.
type Debug struct{}

// Signal returns SignalAlloc.
func (Alloc) Signal() Signal { return SignalAlloc }

// Signal returns SignalDealloc.
func (Dealloc) Signal() Signal { return SignalDealloc }

// Signal returns SignalWrite.
func (Write) Signal() Signal { return SignalWrite }

// Signal returns SignalRead.
func (Read) Signal() Signal { return SignalRead }

// Signal returns SignalWrite, as a push is a store.
func (Push) Signal() Signal { return SignalWrite }

// Signal returns SignalRead, as a pop is a load.
func (Pop) Signal() Signal { return SignalRead }

// Signal returns SignalExit.
func (Exit) Signal() Signal { return SignalExit }

// Signal returns SignalDebug.
func (Debug) Signal() Signal { return SignalDebug }

func (r Alloc) String() string {
	values := make([]string, len(r.Bytes))
	for i, b := range r.Bytes {
		values[i] = fmt.Sprint(b)
	}

	s := "alloc " + strings.Join(values, " ")
	if r.At != nil {
		s += " at " + r.At.String()
	}

	if r.Label != "" {
		s += " as " + r.Label
	}

	return s
}

func (r Dealloc) String() string { return "dealloc " + r.At.String() }
func (r Write) String() string   { return fmt.Sprintf("write %s %d", r.At, r.Value) }
func (r Read) String() string    { return "read " + r.At.String() }
func (r Push) String() string    { return fmt.Sprintf("push %d", r.Value) }
func (Pop) String() string       { return "pop" }
func (Exit) String() string      { return "exit" }
func (Debug) String() string     { return "dbg" }
