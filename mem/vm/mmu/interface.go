package mmu

import "github.com/sarchlab/mmusim/mem/addressing"

// Segment classifies a physical address range.
type Segment int

// The segments of physical memory.
const (
	// SegmentNeutral is heap-like memory, available for allocation.
	SegmentNeutral Segment = iota

	// SegmentStack is the region reserved for the stack.
	SegmentStack
)

func (s Segment) String() string {
	if s == SegmentStack {
		return "Stack"
	}

	return "Neutral"
}

// A SegmentClassifier tells which segment an address belongs to. The MMU
// consults it to keep allocations out of the stack.
type SegmentClassifier interface {
	Classify(addr uint64) Segment
}

// ConfigSegments classifies addresses by the stack range of a configuration.
type ConfigSegments struct {
	Config addressing.Config
}

// Classify returns SegmentStack for addresses in the configured stack range.
func (s ConfigSegments) Classify(addr uint64) Segment {
	if s.Config.InStack(addr) {
		return SegmentStack
	}

	return SegmentNeutral
}
