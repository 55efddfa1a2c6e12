package toplevel

import (
	"io"
	"log"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/mem/addressing"
)

// A Builder can build servers.
type Builder struct {
	address       string
	socketCfgPath string
	cfg           addressing.Config
	hooks         []hooking.Hook
	ids           idgen.Generator
	logger        *log.Logger
}

// MakeBuilder creates a builder for a server on DefaultAddress using the
// Bit64 preset.
func MakeBuilder() Builder {
	return Builder{
		address: DefaultAddress,
		cfg:     addressing.MustPreset(addressing.Bit64),
	}
}

// WithAddress sets the TCP address to listen on.
func (b Builder) WithAddress(address string) Builder {
	b.address = address
	return b
}

// WithSocketConfigFile sets where the bound host and port are written.
func (b Builder) WithSocketConfigFile(path string) Builder {
	b.socketCfgPath = path
	return b
}

// WithConfig sets the address configuration of the session machines.
func (b Builder) WithConfig(cfg addressing.Config) Builder {
	b.cfg = cfg
	return b
}

// WithHooks sets hooks attached to every session machine.
func (b Builder) WithHooks(hooks ...hooking.Hook) Builder {
	b.hooks = hooks
	return b
}

// WithIDGenerator sets how sessions are numbered.
func (b Builder) WithIDGenerator(ids idgen.Generator) Builder {
	b.ids = ids
	return b
}

// WithLogger sets the logger. By default nothing is logged.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates the server. It does not listen yet.
func (b Builder) Build() *Server {
	s := &Server{
		address:       b.address,
		socketCfgPath: b.socketCfgPath,
		cfg:           b.cfg,
		hooks:         b.hooks,
		ids:           b.ids,
		logger:        b.logger,
		sessions:      make(map[string]*Session),
	}

	if s.ids == nil {
		s.ids = idgen.NewSequential()
	}

	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}

	return s
}
