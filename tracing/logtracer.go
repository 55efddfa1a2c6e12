// Package tracing provides hooks that observe machines.
package tracing

import (
	"log"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/fault"
)

// LogTracer writes one line per request and per fault.
type LogTracer struct {
	hooking.LogHookBase
}

// NewLogTracer creates a LogTracer writing to logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	t := new(LogTracer)
	t.Logger = logger

	return t
}

// Func logs the request or the fault.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case machine.HookPosRequest:
		t.logRequest(ctx)
	case machine.HookPosFault:
		t.Printf("%s: %s during %v",
			ctx.Domain.Name(), ctx.Item.(*fault.Fault), ctx.Detail)
	}
}

func (t *LogTracer) logRequest(ctx hooking.HookCtx) {
	record := ctx.Item.(machine.Record)

	if record.Err != nil {
		t.Printf("%s: pid %d %v -> %s, error: %v",
			ctx.Domain.Name(), record.PID, record.Request,
			record.Result.Signal, record.Err)

		return
	}

	t.Printf("%s: pid %d %v -> %s (%s) at %s",
		ctx.Domain.Name(), record.PID, record.Request,
		record.Result.Signal, record.Result.Outcome, record.Result.Address)

	if _, isDebug := record.Request.(machine.Debug); !isDebug {
		return
	}

	if m, ok := ctx.Domain.(*machine.Machine); ok {
		t.Printf("%s: %+v", ctx.Domain.Name(), m.Snapshot())
	}
}
