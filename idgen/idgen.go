// Package idgen generates IDs for recorded items.
package idgen

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var idGeneratorMutex sync.Mutex
var idGeneratorInstantiated bool
var idGenerator Generator

// Generator can generate IDs
type Generator interface {
	// Generate an ID
	Generate() string
}

// NewSequential creates a generator that returns "1", "2", ... in order.
func NewSequential() Generator {
	return &sequentialIDGenerator{}
}

// NewParallel creates a generator of globally unique IDs. The IDs are not
// deterministic.
func NewParallel() Generator {
	return parallelIDGenerator{}
}

// UseSequential configures the shared generator to generate IDs in sequence.
func UseSequential() {
	use(NewSequential())
}

// UseParallel configures the shared generator to generate unique IDs that
// are not deterministic.
func UseParallel() {
	use(NewParallel())
}

func use(g Generator) {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if idGeneratorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	idGenerator = g
	idGeneratorInstantiated = true
}

// Get returns the shared generator. It is sequential unless configured
// otherwise before the first use.
func Get() Generator {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if !idGeneratorInstantiated {
		idGenerator = NewSequential()
		idGeneratorInstantiated = true
	}

	return idGenerator
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct {
}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
