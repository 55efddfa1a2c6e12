package addressing

// A ConfigBuilder creates Configs, starting from a bit-mode preset.
type ConfigBuilder struct {
	bitMode          BitMode
	levelFieldWidth  *uint
	offsetFieldWidth *uint
	levels           *uint
	frameCount       *uint64
	stackBase        *uint64
	stackSize        *uint64
}

// MakeConfigBuilder creates a builder that starts from the Bit64 preset.
func MakeConfigBuilder() ConfigBuilder {
	return ConfigBuilder{bitMode: Bit64}
}

// WithBitMode selects the preset to start from.
func (b ConfigBuilder) WithBitMode(m BitMode) ConfigBuilder {
	b.bitMode = m
	return b
}

// WithLevelFieldWidth overrides the width of each level field.
func (b ConfigBuilder) WithLevelFieldWidth(w uint) ConfigBuilder {
	b.levelFieldWidth = &w
	return b
}

// WithOffsetFieldWidth overrides the offset width. The page size follows.
func (b ConfigBuilder) WithOffsetFieldWidth(w uint) ConfigBuilder {
	b.offsetFieldWidth = &w
	return b
}

// WithLevels overrides the number of page-table levels.
func (b ConfigBuilder) WithLevels(n uint) ConfigBuilder {
	b.levels = &n
	return b
}

// WithFrameCount overrides the number of physical frames.
func (b ConfigBuilder) WithFrameCount(n uint64) ConfigBuilder {
	b.frameCount = &n
	return b
}

// WithStack places the stack region.
func (b ConfigBuilder) WithStack(base, size uint64) ConfigBuilder {
	b.stackBase = &base
	b.stackSize = &size

	return b
}

// Build returns the validated configuration. If the geometry changes and
// the stack is not placed explicitly, the stack moves to the start of the
// last frame.
func (b ConfigBuilder) Build() (Config, error) {
	c, err := Preset(b.bitMode)
	if err != nil {
		return Config{}, err
	}

	if b.levelFieldWidth != nil {
		c.LevelFieldWidth = *b.levelFieldWidth
	}

	if b.levels != nil {
		c.Levels = *b.levels
	}

	if b.offsetFieldWidth != nil {
		c.OffsetFieldWidth = *b.offsetFieldWidth
		if c.OffsetFieldWidth < AddressBitWidth {
			c.PageSize = uint64(1) << c.OffsetFieldWidth
		}
	}

	if b.frameCount != nil {
		c.FrameCount = *b.frameCount
	}

	if b.stackBase != nil {
		c.StackBase = *b.stackBase
		c.StackSize = *b.stackSize
	} else if c.FrameCount > 0 {
		c.StackBase = (c.FrameCount - 1) * c.PageSize
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// MustBuild is like Build but panics on an invalid configuration.
func (b ConfigBuilder) MustBuild() Config {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}

	return c
}
