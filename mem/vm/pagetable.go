package vm

import (
	"errors"

	"github.com/sarchlab/mmusim/mem/addressing"
)

// PID identifies the process that owns an address space or a frame.
type PID uint32

var (
	// ErrTableFull is returned when inserting into a table with no free slot.
	ErrTableFull = errors.New("page table is full")

	// ErrMissingIndex is returned when a level index is absent or beyond the
	// table capacity.
	ErrMissingIndex = errors.New("missing page table index")

	// ErrEntryAbsent is returned when a slot holds no entry.
	ErrEntryAbsent = errors.New("page table entry absent")
)

// A PageTable is a fixed array of optional entries, indexed directly by one
// level field of a virtual address.
type PageTable struct {
	slots []*PTE
	used  int
}

// NewPageTable creates a table with capacity empty slots. The capacity never
// changes.
func NewPageTable(capacity uint64) *PageTable {
	return &PageTable{
		slots: make([]*PTE, capacity),
	}
}

// Cap returns the number of slots.
func (t *PageTable) Cap() int {
	return len(t.slots)
}

// Len returns the number of occupied slots.
func (t *PageTable) Len() int {
	return t.used
}

func (t *PageTable) slot(idx addressing.LevelIndex) (int, bool) {
	if !idx.Present || idx.Value >= uint64(len(t.slots)) {
		return 0, false
	}

	return int(idx.Value), true
}

// Insert stores an entry at the given index. A full table or an absent index
// leaves the table untouched.
func (t *PageTable) Insert(pte PTE, idx addressing.LevelIndex) error {
	if t.used >= len(t.slots) {
		return ErrTableFull
	}

	i, ok := t.slot(idx)
	if !ok {
		return ErrMissingIndex
	}

	if t.slots[i] == nil {
		t.used++
	}

	entry := pte
	t.slots[i] = &entry

	return nil
}

// Entry returns the entry stored at the index. The pointer stays valid until
// the entry is removed or replaced, and can be used to update flags.
func (t *PageTable) Entry(idx addressing.LevelIndex) (*PTE, bool) {
	i, ok := t.slot(idx)
	if !ok || t.slots[i] == nil {
		return nil, false
	}

	return t.slots[i], true
}

// FrameBaseAt returns the frame base of the entry at the index.
func (t *PageTable) FrameBaseAt(idx addressing.LevelIndex) (uint64, error) {
	i, ok := t.slot(idx)
	if !ok {
		return 0, ErrMissingIndex
	}

	if t.slots[i] == nil {
		return 0, ErrEntryAbsent
	}

	return t.slots[i].FrameBase(), nil
}

// Remove clears the slot at the index. It returns false if there was nothing
// to remove.
func (t *PageTable) Remove(idx addressing.LevelIndex) bool {
	i, ok := t.slot(idx)
	if !ok || t.slots[i] == nil {
		return false
	}

	t.slots[i] = nil
	t.used--

	return true
}
