package vm

import (
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
)

// Translate resolves a virtual address to a physical address by walking the
// directory from the top configured level down to level 0. Each present
// upper-level entry leads to the next table on the path.
//
// A missing table or a missing entry on the way is an AddrOutOfRange fault;
// a level-0 entry that is not present is a NullPointerDeref fault. Addresses
// whose high bits are not a sign extension of the translated bits are
// rejected as AddrOutOfRange.
func Translate(
	vAddr uint64,
	dir *PageDirectory,
	cfg addressing.Config,
) (uint64, error) {
	return walk(vAddr, dir, cfg, FlagAccessed)
}

// TranslateForWrite is Translate for a store. It also marks the page dirty.
func TranslateForWrite(
	vAddr uint64,
	dir *PageDirectory,
	cfg addressing.Config,
) (uint64, error) {
	return walk(vAddr, dir, cfg, FlagAccessed|FlagDirty)
}

func walk(
	vAddr uint64,
	dir *PageDirectory,
	cfg addressing.Config,
	mark Flag,
) (uint64, error) {
	if !addressing.Canonical(vAddr, cfg) {
		return 0, fault.NewAddrOutOfRange(vAddr)
	}

	decomposed := addressing.Decompose(vAddr, cfg)

	var prefix uint64

	for level := int(cfg.Levels) - 1; level > 0; level-- {
		t, found := dir.tables[tableKey{level: level, prefix: prefix}]
		if !found {
			return 0, fault.NewAddrOutOfRange(vAddr)
		}

		idx := decomposed.Levels[level]

		e, found := t.Entry(idx)
		if !found || !e.Flag(FlagPresent) {
			return 0, fault.NewAddrOutOfRange(vAddr)
		}

		prefix = prefix<<cfg.LevelFieldWidth | idx.Value
	}

	t, found := dir.tables[tableKey{level: 0, prefix: prefix}]
	if !found {
		return 0, fault.NewAddrOutOfRange(vAddr)
	}

	e, found := t.Entry(decomposed.Levels[0])
	if !found {
		return 0, fault.NewAddrOutOfRange(vAddr)
	}

	if !e.Flag(FlagPresent) {
		return 0, fault.NewNullPointerDeref(vAddr)
	}

	e.Set(mark)

	return e.FrameBase() | decomposed.Offset, nil
}
