package tracing

import (
	"sync"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/fault"
)

// Counter counts requests by signal and faults by kind. It can be read while
// the machine runs.
type Counter struct {
	lock     sync.Mutex
	signals  map[machine.Signal]uint64
	faults   map[fault.Kind]uint64
	rejected uint64
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{
		signals: make(map[machine.Signal]uint64),
		faults:  make(map[fault.Kind]uint64),
	}
}

// Func counts the request or the fault.
func (c *Counter) Func(ctx hooking.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch ctx.Pos {
	case machine.HookPosRequest:
		record := ctx.Item.(machine.Record)
		c.signals[record.Result.Signal]++

		if record.Err == nil && !record.Result.Outcome.Applied {
			c.rejected++
		}
	case machine.HookPosFault:
		c.faults[ctx.Item.(*fault.Fault).Kind]++
	}
}

// Signals returns the number of requests per signal.
func (c *Counter) Signals() map[machine.Signal]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make(map[machine.Signal]uint64, len(c.signals))
	for s, n := range c.signals {
		out[s] = n
	}

	return out
}

// Faults returns the number of faults per kind.
func (c *Counter) Faults() map[fault.Kind]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make(map[fault.Kind]uint64, len(c.faults))
	for k, n := range c.faults {
		out[k] = n
	}

	return out
}

// Rejected returns the number of requests that left memory untouched
// without faulting.
func (c *Counter) Rejected() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.rejected
}
