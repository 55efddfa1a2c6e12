package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/mmusim/mem/addressing"
)

// tableKey locates a table in the tree: its level and the indices of the
// levels above it, most significant first.
type tableKey struct {
	level  int
	prefix uint64
}

// A PageDirectory is the translation root of one address space. The top
// level has a single table; a present entry at level L selects the level
// L-1 table reached through that entry.
type PageDirectory struct {
	cfg    addressing.Config
	tables map[tableKey]*PageTable
}

// NewPageDirectory creates a directory with every table absent.
func NewPageDirectory(cfg addressing.Config) *PageDirectory {
	return &PageDirectory{
		cfg:    cfg,
		tables: make(map[tableKey]*PageTable),
	}
}

// Levels returns the number of levels of the directory.
func (d *PageDirectory) Levels() int {
	return int(d.cfg.Levels)
}

// NumTables returns the number of tables in the tree.
func (d *PageDirectory) NumTables() int {
	return len(d.tables)
}

// prefix returns the path to the level table used for vAddr.
func (d *PageDirectory) prefix(level int, decomposed addressing.Decomposed) uint64 {
	var p uint64

	for l := d.Levels() - 1; l > level; l-- {
		p = p<<d.cfg.LevelFieldWidth | decomposed.Levels[l].Value
	}

	return p
}

func (d *PageDirectory) key(level int, vAddr uint64) tableKey {
	if level < 0 || level >= d.Levels() {
		panic(fmt.Sprintf("level %d out of range [0, %d)", level, d.Levels()))
	}

	decomposed := addressing.Decompose(vAddr, d.cfg)

	return tableKey{level: level, prefix: d.prefix(level, decomposed)}
}

// Table returns the level table a walk for vAddr consults, if present. It
// does not check that the upper-level entries leading to it are present.
func (d *PageDirectory) Table(level int, vAddr uint64) (*PageTable, bool) {
	if level < 0 || level >= d.Levels() {
		return nil, false
	}

	t, found := d.tables[d.key(level, vAddr)]

	return t, found
}

// SetTable installs (or, with nil, removes) the level table used for vAddr.
func (d *PageDirectory) SetTable(level int, vAddr uint64, t *PageTable) {
	k := d.key(level, vAddr)

	if t == nil {
		delete(d.tables, k)
		return
	}

	d.tables[k] = t
}

func (d *PageDirectory) ensureTable(k tableKey) *PageTable {
	t, found := d.tables[k]
	if !found {
		t = NewPageTable(d.cfg.FrameCount)
		d.tables[k] = t
	}

	return t
}

// Map makes vAddr translate to the frame starting at frameBase. Missing
// tables are created along the path and every upper-level entry on it is
// made present. The level-0 entry always carries FlagPresent.
func (d *PageDirectory) Map(vAddr, frameBase uint64, flags Flag) error {
	decomposed := addressing.Decompose(vAddr, d.cfg)

	var prefix uint64

	for level := d.Levels() - 1; level > 0; level-- {
		t := d.ensureTable(tableKey{level: level, prefix: prefix})
		idx := decomposed.Levels[level]

		if e, found := t.Entry(idx); !found || !e.Flag(FlagPresent) {
			err := t.Insert(NewPTE(0, FlagPresent|FlagWritable), idx)
			if err != nil {
				return errors.Wrapf(err, "mapping 0x%x at level %d", vAddr, level)
			}
		}

		prefix = prefix<<d.cfg.LevelFieldWidth | idx.Value
	}

	aligned := frameBase &^ d.cfg.OffsetMask()
	t := d.ensureTable(tableKey{level: 0, prefix: prefix})

	err := t.Insert(NewPTE(aligned, flags|FlagPresent), decomposed.Levels[0])
	if err != nil {
		return errors.Wrapf(err, "mapping 0x%x at level 0", vAddr)
	}

	return nil
}

// Unmap removes the level-0 entry that translates vAddr. Upper-level entries
// are kept since other pages may share them.
func (d *PageDirectory) Unmap(vAddr uint64) bool {
	t, found := d.Table(0, vAddr)
	if !found {
		return false
	}

	return t.Remove(addressing.Decompose(vAddr, d.cfg).Levels[0])
}
