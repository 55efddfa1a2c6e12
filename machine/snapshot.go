package machine

import (
	"maps"
	"slices"

	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

// A Snapshot is a serializable view of a machine.
type Snapshot struct {
	Name        string
	BitMode     string
	PageSize    uint64
	FrameCount  uint64
	Stack       StackSnapshot
	Allocations []mmu.Allocation
	Processes   []ProcessSnapshot
	Labels      []LabelSnapshot
}

// LabelSnapshot describes a label and the address it was given with.
type LabelSnapshot struct {
	Name    string
	Address string
}

// StackSnapshot describes the stack region.
type StackSnapshot struct {
	Base uint64
	SP   uint64
	Cap  uint64
}

// ProcessSnapshot describes one process.
type ProcessSnapshot struct {
	PID          vm.PID
	MappedFrames []int
}

// FrameSnapshot describes a frame in use.
type FrameSnapshot struct {
	Index  int
	Base   uint64
	Owners []vm.PID
	Mapped bool
	Stack  bool
}

// Snapshot captures the current state of the machine.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Name:       m.name,
		BitMode:    m.cfg.BitMode.String(),
		PageSize:   m.cfg.PageSize,
		FrameCount: m.cfg.FrameCount,
		Stack: StackSnapshot{
			Base: m.stack.Base(),
			SP:   m.stack.SP(),
			Cap:  m.stack.Cap(),
		},
		Allocations: m.mmu.Allocations(),
	}

	for _, pid := range m.Processes() {
		p := ProcessSnapshot{PID: pid}

		for frame, owner := range m.mappedFrames {
			if owner == pid {
				p.MappedFrames = append(p.MappedFrames, frame)
			}
		}

		slices.Sort(p.MappedFrames)
		s.Processes = append(s.Processes, p)
	}

	for _, name := range slices.Sorted(maps.Keys(m.labels)) {
		s.Labels = append(s.Labels, LabelSnapshot{
			Name:    name,
			Address: m.labels[name].ref.String(),
		})
	}

	return s
}

// Frames lists the frames that are allocated, mapped, or hold the stack.
func (m *Machine) Frames() []FrameSnapshot {
	var frames []FrameSnapshot

	for i := 0; i < m.mmu.NumFrames(); i++ {
		_, mapped := m.mappedFrames[i]
		f := FrameSnapshot{
			Index:  i,
			Base:   m.mmu.FrameAt(i).BaseAddress,
			Owners: m.mmu.Owners(i),
			Mapped: mapped,
			Stack:  m.holdsStack(i),
		}

		if len(f.Owners) > 0 || f.Mapped || f.Stack {
			frames = append(frames, f)
		}
	}

	return frames
}
