package addressing

import (
	"fmt"
	"math/bits"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the declarative form of a Config. Field names follow the
// bit-mode preset files. Every field except the bit-mode is optional and
// overrides the preset.
type fileConfig struct {
	BitMode     BitMode `yaml:"bitmode"`
	LvlMask     *uint64 `yaml:"lvl_mask,omitempty"`
	OffMask     *uint64 `yaml:"off_mask,omitempty"`
	PageSize    *uint64 `yaml:"page_size,omitempty"`
	PageCount   *uint64 `yaml:"page_count,omitempty"`
	PTLevels    *uint   `yaml:"pt_levels,omitempty"`
	VAddrLvlLen *uint   `yaml:"v_addr_lvl_len,omitempty"`
	VAddrOffLen *uint   `yaml:"v_addr_off_len,omitempty"`
	StackBase   *uint64 `yaml:"stack_base,omitempty"`
	StackSize   *uint64 `yaml:"stack_sz,omitempty"`
}

// Load reads a configuration file. Both YAML and JSON are accepted.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}

	return c, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (Config, error) {
	var f fileConfig

	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}

	if f.BitMode == 0 {
		return Config{}, fmt.Errorf("%w: missing bitmode", ErrInvalidConfig)
	}

	c, err := Preset(f.BitMode)
	if err != nil {
		return Config{}, err
	}

	if err := f.applyGeometry(&c); err != nil {
		return Config{}, err
	}

	f.applyMemory(&c)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (f fileConfig) applyGeometry(c *Config) error {
	if f.PTLevels != nil {
		c.Levels = *f.PTLevels
	}

	lvl, err := fieldWidth("level", f.LvlMask, f.VAddrLvlLen)
	if err != nil {
		return err
	}

	if lvl != nil {
		c.LevelFieldWidth = *lvl
	}

	off, err := fieldWidth("offset", f.OffMask, f.VAddrOffLen)
	if err != nil {
		return err
	}

	if off != nil {
		c.OffsetFieldWidth = *off
		c.PageSize = uint64(1) << c.OffsetFieldWidth
	}

	if f.PageSize != nil {
		if *f.PageSize != c.PageSize {
			return fmt.Errorf("%w: page size %d does not match %d offset bits",
				ErrInvalidConfig, *f.PageSize, c.OffsetFieldWidth)
		}
	}

	return nil
}

func (f fileConfig) applyMemory(c *Config) {
	if f.PageCount != nil {
		c.FrameCount = *f.PageCount
		c.StackBase = (c.FrameCount - 1) * c.PageSize
	}

	if f.StackBase != nil {
		c.StackBase = *f.StackBase
	}

	if f.StackSize != nil {
		c.StackSize = *f.StackSize
	}
}

// fieldWidth reconciles a mask and a length describing the same field.
func fieldWidth(name string, mask *uint64, length *uint) (*uint, error) {
	var width *uint

	if mask != nil {
		w := uint(bits.OnesCount64(*mask))
		if *mask != lowMask(w) {
			return nil, fmt.Errorf("%w: %s mask 0x%x is not a contiguous "+
				"low-bit mask", ErrInvalidConfig, name, *mask)
		}

		width = &w
	}

	if length != nil {
		if width != nil && *width != *length {
			return nil, fmt.Errorf("%w: %s mask has %d bits but length is %d",
				ErrInvalidConfig, name, *width, *length)
		}

		l := *length
		width = &l
	}

	if width != nil && *width >= AddressBitWidth {
		return nil, fmt.Errorf("%w: %s field too wide", ErrInvalidConfig, name)
	}

	return width, nil
}

// Marshal encodes a configuration in the declarative form accepted by
// Parse.
func Marshal(c Config) ([]byte, error) {
	lvlMask := c.LevelMask()
	offMask := c.OffsetMask()

	f := fileConfig{
		BitMode:     c.BitMode,
		LvlMask:     &lvlMask,
		OffMask:     &offMask,
		PageSize:    &c.PageSize,
		PageCount:   &c.FrameCount,
		PTLevels:    &c.Levels,
		VAddrLvlLen: &c.LevelFieldWidth,
		VAddrOffLen: &c.OffsetFieldWidth,
		StackBase:   &c.StackBase,
		StackSize:   &c.StackSize,
	}

	return yaml.Marshal(f)
}
