// Package stack implements the bounded stack region of physical memory.
package stack

import (
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

// Storage is the byte-addressable memory the stack lives in.
type Storage interface {
	Read(addr uint64) (byte, error)
	Write(addr uint64, data []byte) (int, error)
}

// A Stack grows upward from its base. The stack pointer always stays within
// [base, base+cap].
type Stack struct {
	storage Storage
	base    uint64
	cap     uint64
	sp      uint64
}

// New creates an empty stack over the stack range of the configuration.
func New(cfg addressing.Config, storage Storage) *Stack {
	return &Stack{
		storage: storage,
		base:    cfg.StackBase,
		cap:     cfg.StackSize,
		sp:      cfg.StackBase,
	}
}

// SP returns the address of the next push.
func (s *Stack) SP() uint64 {
	return s.sp
}

// Base returns the lowest address of the stack.
func (s *Stack) Base() uint64 {
	return s.base
}

// Size returns the number of bytes currently on the stack.
func (s *Stack) Size() uint64 {
	return s.sp - s.base
}

// Cap returns the maximum number of bytes the stack can hold.
func (s *Stack) Cap() uint64 {
	return s.cap
}

// Push writes b on top of the stack. A write the storage drops is an
// AddrOutOfRange fault.
func (s *Stack) Push(b byte) error {
	if s.sp >= s.base+s.cap {
		return fault.NewStackOverflow(s.sp)
	}

	n, err := s.storage.Write(s.sp, []byte{b})
	if err != nil {
		return err
	}

	if n == 0 {
		return fault.NewAddrOutOfRange(s.sp)
	}

	s.sp++

	return nil
}

// Pop removes and returns the byte on top of the stack.
func (s *Stack) Pop() (byte, error) {
	if s.sp <= s.base {
		return 0, fault.NewUnrecoverable()
	}

	s.sp--

	b, err := s.storage.Read(s.sp)
	if err != nil {
		s.sp++
		return 0, err
	}

	return b, nil
}

// Classify tells whether addr belongs to the stack region.
func (s *Stack) Classify(addr uint64) mmu.Segment {
	if addr >= s.base && addr-s.base < s.cap {
		return mmu.SegmentStack
	}

	return mmu.SegmentNeutral
}
