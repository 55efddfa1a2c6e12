// Package mmu provides the physical frame pool of the simulated machine.
package mmu

import (
	"slices"
	"sort"

	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
	"github.com/sarchlab/mmusim/mem/vm"
)

// An Allocation is one entry of the allocation registry.
type Allocation struct {
	Base  uint64
	Size  uint64
	Owner vm.PID
}

// End is the first address after the allocation.
func (a Allocation) End() uint64 {
	return a.Base + a.Size
}

// Contains tells if the address falls in the allocation.
func (a Allocation) Contains(addr uint64) bool {
	return addr >= a.Base && addr-a.Base < a.Size
}

// MMU owns the physical frames and the allocation registry. It is a
// single-threaded structure; callers serialize access.
type MMU struct {
	name     string
	cfg      addressing.Config
	segments SegmentClassifier

	frames      []Page
	allocations map[uint64]Allocation
	bases       []uint64
}

// Name returns the name of the MMU.
func (m *MMU) Name() string {
	return m.name
}

// Config returns the configuration the MMU was built with.
func (m *MMU) Config() addressing.Config {
	return m.cfg
}

// NumFrames returns the number of physical frames.
func (m *MMU) NumFrames() int {
	return len(m.frames)
}

// FrameIndex returns the index of the frame holding addr.
func (m *MMU) FrameIndex(addr uint64) (int, error) {
	i := addr / m.cfg.PageSize
	if i >= uint64(len(m.frames)) {
		return 0, fault.NewAddrOutOfRange(addr)
	}

	return int(i), nil
}

// Frame returns the frame holding addr.
func (m *MMU) Frame(addr uint64) (*Page, error) {
	i, err := m.FrameIndex(addr)
	if err != nil {
		return nil, err
	}

	return &m.frames[i], nil
}

// FrameAt returns the frame with the given index.
func (m *MMU) FrameAt(i int) *Page {
	return &m.frames[i]
}

// Owners returns the processes holding allocations that overlap frame i, in
// ascending order.
func (m *MMU) Owners(i int) []vm.PID {
	p := &m.frames[i]

	var owners []vm.PID

	start := m.predecessor(p.BaseAddress)
	if start < 0 {
		start = 0
	}

	for _, base := range m.bases[start:] {
		if base >= p.End() {
			break
		}

		a := m.allocations[base]
		if a.End() <= p.BaseAddress {
			continue
		}

		if !slices.Contains(owners, a.Owner) {
			owners = append(owners, a.Owner)
		}
	}

	slices.Sort(owners)

	return owners
}

// Owner returns the lowest-numbered owner of frame i. A frame without owner
// is free.
func (m *MMU) Owner(i int) (vm.PID, bool) {
	owners := m.Owners(i)
	if len(owners) == 0 {
		return 0, false
	}

	return owners[0], true
}

// IsFree tells if no allocation overlaps frame i.
func (m *MMU) IsFree(i int) bool {
	_, owned := m.Owner(i)
	return !owned
}

// isNull tells if addr falls in the free null frame. The stack segment is
// never null.
func (m *MMU) isNull(addr uint64, i int) bool {
	return m.frames[i].BaseAddress == 0 &&
		m.segments.Classify(addr) != SegmentStack &&
		m.IsFree(i)
}

// Read returns the byte at a physical address. The null frame reads as zero
// while it is free, except in the stack segment.
func (m *MMU) Read(addr uint64) (byte, error) {
	i, err := m.FrameIndex(addr)
	if err != nil {
		return 0, err
	}

	if m.isNull(addr, i) {
		return 0, nil
	}

	return m.frames[i].read(addr), nil
}

// ReadChecked is Read restricted to allocated addresses. The boolean is false
// if addr is not allocated yet.
func (m *MMU) ReadChecked(addr uint64) (byte, bool, error) {
	if _, found := m.covering(addr); !found {
		return 0, false, nil
	}

	b, err := m.Read(addr)

	return b, true, err
}

// Write stores data from addr on and returns the number of bytes written.
// Data that would overrun the frame is dropped. Writes to the free null
// frame outside the stack segment are dropped.
func (m *MMU) Write(addr uint64, data []byte) (int, error) {
	i, err := m.FrameIndex(addr)
	if err != nil {
		return 0, err
	}

	if m.isNull(addr, i) {
		return 0, nil
	}

	return m.frames[i].write(addr, data), nil
}

// WriteChecked is Write restricted to allocated addresses. The boolean is
// false if addr is not allocated yet.
func (m *MMU) WriteChecked(addr uint64, data []byte) (int, bool, error) {
	if _, found := m.covering(addr); !found {
		return 0, false, nil
	}

	n, err := m.Write(addr, data)

	return n, true, err
}

// AllocChecked records an allocation of n bytes at addr for owner. It is a
// no-op if addr is already allocated, lies in the stack segment, or if the
// range runs into a later allocation.
func (m *MMU) AllocChecked(addr, n uint64, owner vm.PID) (Outcome, error) {
	if n == 0 {
		return Rejected(ReasonEmpty), nil
	}

	if _, err := m.FrameIndex(addr); err != nil {
		return Outcome{}, err
	}

	if n > m.cfg.MemorySize()-addr {
		return Outcome{}, fault.NewAddrOutOfRange(m.cfg.MemorySize())
	}

	if _, found := m.covering(addr); found {
		return Rejected(ReasonAllocated), nil
	}

	if m.segments.Classify(addr) == SegmentStack {
		return Rejected(ReasonStack), nil
	}

	if next, found := m.successor(addr); found && next < addr+n {
		return Rejected(ReasonOverlap), nil
	}

	m.insert(Allocation{Base: addr, Size: n, Owner: owner})

	return Applied(), nil
}

// Dealloc removes the allocation starting at addr, whoever owns it.
func (m *MMU) Dealloc(addr uint64) Outcome {
	if _, found := m.allocations[addr]; !found {
		return Rejected(ReasonNotAllocated)
	}

	m.remove(addr)

	return Applied()
}

// DeallocOwned removes the allocation starting at addr only if it belongs to
// owner.
func (m *MMU) DeallocOwned(addr uint64, owner vm.PID) Outcome {
	a, found := m.allocations[addr]
	if !found {
		return Rejected(ReasonNotAllocated)
	}

	if a.Owner != owner {
		return Rejected(ReasonNotOwner)
	}

	m.remove(addr)

	return Applied()
}

// DeallocOutsideStack removes the allocation starting at addr unless addr
// lies in the stack segment.
func (m *MMU) DeallocOutsideStack(addr uint64) Outcome {
	if m.segments.Classify(addr) == SegmentStack {
		return Rejected(ReasonStack)
	}

	return m.Dealloc(addr)
}

// Allocation returns the allocation covering addr.
func (m *MMU) Allocation(addr uint64) (Allocation, bool) {
	return m.covering(addr)
}

// Allocations returns the registry content ordered by base address.
func (m *MMU) Allocations() []Allocation {
	list := make([]Allocation, 0, len(m.bases))
	for _, base := range m.bases {
		list = append(list, m.allocations[base])
	}

	return list
}

// FreeAddress finds the lowest address where n bytes can be allocated
// without touching an allocation, the stack, or the null frame.
func (m *MMU) FreeAddress(n uint64) (uint64, bool) {
	if n == 0 {
		return 0, false
	}

	obstacles := m.Allocations()
	if m.cfg.StackSize > 0 {
		obstacles = append(obstacles, Allocation{
			Base: m.cfg.StackBase,
			Size: m.cfg.StackSize,
		})
	}

	if len(m.frames) > 1 {
		obstacles = append(obstacles, Allocation{Size: m.cfg.PageSize})
	}

	sort.Slice(obstacles, func(i, j int) bool {
		return obstacles[i].Base < obstacles[j].Base
	})

	candidate := uint64(0)
	for _, o := range obstacles {
		if o.Base >= candidate && o.Base-candidate >= n {
			return candidate, true
		}

		candidate = max(candidate, o.End())
	}

	if m.cfg.MemorySize()-candidate >= n {
		return candidate, true
	}

	return 0, false
}

// CheckBounds reports a BufferOverflow if a width-byte access at addr runs
// past the end of the allocation covering addr. Unallocated addresses are
// not checked.
func (m *MMU) CheckBounds(addr, width uint64) error {
	a, found := m.covering(addr)
	if !found {
		return nil
	}

	if width > a.End()-addr {
		return fault.NewBufferOverflow(a.End())
	}

	return nil
}

// predecessor returns the index in bases of the last base <= addr, or -1.
func (m *MMU) predecessor(addr uint64) int {
	return sort.Search(len(m.bases), func(i int) bool {
		return m.bases[i] > addr
	}) - 1
}

func (m *MMU) successor(addr uint64) (uint64, bool) {
	i := m.predecessor(addr) + 1
	if i >= len(m.bases) {
		return 0, false
	}

	return m.bases[i], true
}

func (m *MMU) covering(addr uint64) (Allocation, bool) {
	i := m.predecessor(addr)
	if i < 0 {
		return Allocation{}, false
	}

	a := m.allocations[m.bases[i]]
	if !a.Contains(addr) {
		return Allocation{}, false
	}

	return a, true
}

func (m *MMU) insert(a Allocation) {
	i := m.predecessor(a.Base) + 1
	m.bases = slices.Insert(m.bases, i, a.Base)
	m.allocations[a.Base] = a
}

func (m *MMU) remove(base uint64) {
	i := m.predecessor(base)
	m.bases = slices.Delete(m.bases, i, i+1)
	delete(m.allocations, base)
}

// Zero clears the content of frame i. Deallocation never does this.
func (m *MMU) Zero(i int) {
	m.frames[i].Zero()
}
