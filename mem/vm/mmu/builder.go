package mmu

import (
	"github.com/sarchlab/mmusim/mem/addressing"
)

// A Builder can build MMUs.
type Builder struct {
	cfg      addressing.Config
	segments SegmentClassifier
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

// WithSegmentClassifier sets what decides whether an address is in the
// stack. By default, the stack range of the configuration is used.
func (b Builder) WithSegmentClassifier(c SegmentClassifier) Builder {
	b.segments = c
	return b
}

// Build returns a newly created MMU with every frame free and zeroed.
func (b Builder) Build(name string) *MMU {
	if err := b.cfg.Validate(); err != nil {
		panic(err)
	}

	m := &MMU{
		name:        name,
		cfg:         b.cfg,
		segments:    b.segments,
		allocations: make(map[uint64]Allocation),
	}

	if m.segments == nil {
		m.segments = ConfigSegments{Config: b.cfg}
	}

	b.createFrames(m)

	return m
}

func (b Builder) createFrames(m *MMU) {
	m.frames = make([]Page, b.cfg.FrameCount)
	for i := range m.frames {
		m.frames[i] = newPage(uint64(i)*b.cfg.PageSize, b.cfg.PageSize)
	}
}
