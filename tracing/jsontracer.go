package tracing

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/machine"
)

// JSONTracer writes requests as a JSON array of RequestEntry.
type JSONTracer struct {
	lock       sync.Mutex
	w          io.Writer
	ids        idgen.Generator
	firstEntry bool
}

// NewJSONTracer creates a JSONTracer and opens the array. Close must be
// called to terminate it.
func NewJSONTracer(w io.Writer, ids idgen.Generator) *JSONTracer {
	mustWrite(w, []byte("[\n"))

	return &JSONTracer{
		w:          w,
		ids:        ids,
		firstEntry: true,
	}
}

// Func writes one entry per request.
func (t *JSONTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != machine.HookPosRequest {
		return
	}

	b, err := json.Marshal(newRequestEntry(ctx, t.ids.Generate()))
	if err != nil {
		panic(err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.firstEntry {
		t.firstEntry = false
	} else {
		mustWrite(t.w, []byte(",\n"))
	}

	mustWrite(t.w, b)
}

// Close terminates the array.
func (t *JSONTracer) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()

	mustWrite(t.w, []byte("\n]\n"))
}

func mustWrite(w io.Writer, b []byte) {
	_, err := w.Write(b)
	if err != nil {
		panic(err)
	}
}
