package addressing

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BitMode names one of the machine geometry presets.
type BitMode uint8

// The supported bit-modes.
const (
	Bit8  BitMode = 8
	Bit16 BitMode = 16
	Bit32 BitMode = 32
	Bit64 BitMode = 64
)

// BitModes lists all the supported bit-modes in ascending order.
var BitModes = []BitMode{Bit8, Bit16, Bit32, Bit64}

// Valid tells if the bit-mode is one of the supported presets.
func (m BitMode) Valid() bool {
	switch m {
	case Bit8, Bit16, Bit32, Bit64:
		return true
	}

	return false
}

func (m BitMode) String() string {
	return "Bit" + strconv.Itoa(int(m))
}

// ParseBitMode accepts "8", "Bit8", "bit8" and the like.
func ParseBitMode(s string) (BitMode, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "bit")

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid bit-mode %q", s)
	}

	m := BitMode(n)
	if n < 0 || n > 255 || !m.Valid() {
		return 0, fmt.Errorf("unsupported bit-mode %q", s)
	}

	return m, nil
}

// UnmarshalYAML decodes either the numeric or the named form.
func (m *BitMode) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseBitMode(node.Value)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// MarshalYAML encodes the named form used by the preset files.
func (m BitMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// presetLevels maps each bit-mode to its number of page-table levels. All
// presets share the x86-64 style 9-bit level fields and 4 KiB pages.
var presetLevels = map[BitMode]uint{
	Bit8:  1,
	Bit16: 2,
	Bit32: 3,
	Bit64: 4,
}

const (
	presetLevelFieldWidth  = 9
	presetOffsetFieldWidth = 12
	presetFrameCount       = 512
	presetStackSize        = 64
)

// Preset returns the configuration associated with a bit-mode. The stack is
// placed at the start of the last frame.
func Preset(m BitMode) (Config, error) {
	levels, found := presetLevels[m]
	if !found {
		return Config{}, fmt.Errorf("%w: unsupported bit-mode %d",
			ErrInvalidConfig, uint8(m))
	}

	pageSize := uint64(1) << presetOffsetFieldWidth

	c := Config{
		BitMode:          m,
		LevelFieldWidth:  presetLevelFieldWidth,
		OffsetFieldWidth: presetOffsetFieldWidth,
		Levels:           levels,
		PageSize:         pageSize,
		FrameCount:       presetFrameCount,
		StackBase:        (presetFrameCount - 1) * pageSize,
		StackSize:        presetStackSize,
	}

	return c, c.Validate()
}

// MustPreset is like Preset but panics on an unknown bit-mode.
func MustPreset(m BitMode) Config {
	c, err := Preset(m)
	if err != nil {
		panic(err)
	}

	return c
}
