package tracing

import (
	"fmt"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/fault"
)

// RequestTableName is the table DBTracer writes to.
const RequestTableName = "mmusim_requests"

// RequestEntry is one row of the request table.
type RequestEntry struct {
	ID      string
	Machine string
	PID     uint32
	Request string
	Signal  uint8
	Applied bool
	Reason  string
	Address string
	Value   int8
	Fault   string
	Error   string
}

// DBTracer records every request into a DataRecorder. Machines running in
// different goroutines can share it.
type DBTracer struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
	ids      idgen.Generator
}

// NewDBTracer creates a DBTracer and the request table. The recorder is
// flushed when the program exits.
func NewDBTracer(
	recorder datarecording.DataRecorder,
	ids idgen.Generator,
) *DBTracer {
	t := &DBTracer{
		recorder: recorder,
		ids:      ids,
	}

	recorder.CreateTable(RequestTableName, RequestEntry{})

	atexit.Register(func() { t.Terminate() })

	return t
}

// Func records requests. Faults are recorded as part of their request.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != machine.HookPosRequest {
		return
	}

	entry := newRequestEntry(ctx, t.ids.Generate())

	t.lock.Lock()
	defer t.lock.Unlock()

	t.recorder.InsertData(RequestTableName, entry)
}

func newRequestEntry(ctx hooking.HookCtx, id string) RequestEntry {
	record := ctx.Item.(machine.Record)
	entry := RequestEntry{
		ID:      id,
		Machine: ctx.Domain.Name(),
		PID:     uint32(record.PID),
		Request: fmt.Sprint(record.Request),
		Signal:  uint8(record.Result.Signal),
		Applied: record.Result.Outcome.Applied,
		Address: record.Result.Address.String(),
		Value:   record.Result.Value,
	}

	if !entry.Applied {
		entry.Reason = record.Result.Outcome.Reason.String()
	}

	if f, isFault := fault.As(record.Err); isFault {
		entry.Fault = f.Kind.String()
	}

	if record.Err != nil {
		entry.Error = record.Err.Error()
	}

	return entry
}

// Terminate flushes the buffered rows.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.recorder.Flush()
}
