package machine

import (
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/stack"
	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

// A Builder can build machines.
type Builder struct {
	cfg addressing.Config
}

// MakeBuilder creates a new builder using the Bit64 preset.
func MakeBuilder() Builder {
	return Builder{
		cfg: addressing.MustPreset(addressing.Bit64),
	}
}

// WithConfig sets the address configuration.
func (b Builder) WithConfig(cfg addressing.Config) Builder {
	b.cfg = cfg
	return b
}

// Build creates a machine with no process.
func (b Builder) Build(name string) *Machine {
	m := &Machine{
		name:         name,
		cfg:          b.cfg,
		processes:    make(map[vm.PID]*process),
		mappedFrames: make(map[int]vm.PID),
		labels:       make(map[string]label),
	}

	m.mmu = mmu.MakeBuilder().
		WithConfig(b.cfg).
		Build(name + ".MMU")
	m.stack = stack.New(b.cfg, m.mmu)

	return m
}
