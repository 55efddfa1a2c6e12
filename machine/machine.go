// Package machine runs requests against one simulated address space.
package machine

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
	"github.com/sarchlab/mmusim/mem/stack"
	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

// HookPosRequest is triggered after every request. The item is a Record.
var HookPosRequest = &hooking.HookPos{Name: "Request"}

// HookPosFault is triggered when a request faults. The item is the
// *fault.Fault and the detail is the Request.
var HookPosFault = &hooking.HookPos{Name: "Fault"}

var (
	// ErrNoProcess is returned for requests naming an unknown process.
	ErrNoProcess = errors.New("no such process")

	// ErrUnknownLabel is returned when a label does not resolve.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrLabelInUse is returned when an allocation reuses a label.
	ErrLabelInUse = errors.New("label already in use")

	// ErrUnsupported is returned for request types the machine cannot run.
	ErrUnsupported = errors.New("unsupported request")
)

// Result is what a request produced.
type Result struct {
	Signal  Signal
	Outcome mmu.Outcome

	// Address is the physical address the request acted on.
	Address addressing.Address

	// Value is the value loaded by Read and Pop.
	Value int8
}

// A Record is the hook item describing one executed request.
type Record struct {
	PID     vm.PID
	Request Request
	Result  Result
	Err     error
}

type process struct {
	pid vm.PID
	dir *vm.PageDirectory
}

type label struct {
	ref   addressing.Address
	base  uint64
	owner vm.PID
}

// Machine is a simulated computer with one physical memory shared by its
// processes. It is not safe for concurrent use.
type Machine struct {
	hooking.HookableBase

	name  string
	cfg   addressing.Config
	mmu   *mmu.MMU
	stack *stack.Stack

	processes    map[vm.PID]*process
	nextPID      vm.PID
	mappedFrames map[int]vm.PID
	labels       map[string]label
}

// Name returns the name of the machine.
func (m *Machine) Name() string {
	return m.name
}

// Config returns the address configuration of the machine.
func (m *Machine) Config() addressing.Config {
	return m.cfg
}

// MMU returns the frame pool of the machine.
func (m *Machine) MMU() *mmu.MMU {
	return m.mmu
}

// Stack returns the stack of the machine.
func (m *Machine) Stack() *stack.Stack {
	return m.stack
}

// Spawn creates a process with an empty page directory.
func (m *Machine) Spawn() vm.PID {
	m.nextPID++

	m.processes[m.nextPID] = &process{
		pid: m.nextPID,
		dir: vm.NewPageDirectory(m.cfg),
	}

	return m.nextPID
}

// Processes returns the live processes in ascending order.
func (m *Machine) Processes() []vm.PID {
	return slices.Sorted(maps.Keys(m.processes))
}

// Directory returns the page directory of a process.
func (m *Machine) Directory(pid vm.PID) (*vm.PageDirectory, bool) {
	p, found := m.processes[pid]
	if !found {
		return nil, false
	}

	return p.dir, true
}

// Map makes the page holding vAddr translate to a frame in the address
// space of pid. A frame the page was mapped to before is released.
func (m *Machine) Map(pid vm.PID, vAddr uint64, frame int) error {
	p, err := m.process(pid)
	if err != nil {
		return err
	}

	if frame < 0 || frame >= m.mmu.NumFrames() {
		return fault.NewAddrOutOfRange(uint64(frame) * m.cfg.PageSize)
	}

	previous, prevErr := vm.Translate(vAddr, p.dir, m.cfg)

	err = p.dir.Map(vAddr, uint64(frame)*m.cfg.PageSize, vm.FlagWritable)
	if err != nil {
		return err
	}

	if prevErr == nil {
		old := int(previous / m.cfg.PageSize)
		if old != frame && m.mappedFrames[old] == pid {
			delete(m.mappedFrames, old)
		}
	}

	m.mappedFrames[frame] = pid

	return nil
}

// Lookup resolves a label to the address it was given with.
func (m *Machine) Lookup(name string) (addressing.Address, bool) {
	l, found := m.labels[name]
	return l.ref, found
}

// Exec runs a request on behalf of process pid. Faults are returned as
// errors; requests that leave the memory untouched report a rejected
// outcome.
func (m *Machine) Exec(pid vm.PID, req Request) (Result, error) {
	var res Result

	p, err := m.process(pid)
	if err == nil {
		res, err = m.exec(p, req)
	}

	res.Signal = req.Signal()
	m.report(pid, req, res, err)

	return res, err
}

func (m *Machine) process(pid vm.PID) (*process, error) {
	p, found := m.processes[pid]
	if !found {
		return nil, errors.Wrapf(ErrNoProcess, "pid %d", pid)
	}

	return p, nil
}

func (m *Machine) report(pid vm.PID, req Request, res Result, err error) {
	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosRequest,
		Item:   Record{PID: pid, Request: req, Result: res, Err: err},
	})

	if f, isFault := fault.As(err); isFault {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosFault,
			Item:   f,
			Detail: req,
		})
	}
}

func (m *Machine) exec(p *process, req Request) (Result, error) {
	switch r := req.(type) {
	case Alloc:
		return m.alloc(p, r)
	case Dealloc:
		return m.dealloc(p, r)
	case Write:
		return m.write(p, r)
	case Read:
		return m.read(p, r)
	case Push:
		return m.push(r)
	case Pop:
		return m.pop()
	case Exit:
		return m.exit(p), nil
	case Debug:
		return Result{Outcome: mmu.Applied()}, nil
	default:
		return Result{}, errors.Wrapf(ErrUnsupported, "%T", req)
	}
}

func (m *Machine) resolve(p *process, ref Ref, forWrite bool) (uint64, error) {
	a, err := m.target(ref)
	if err != nil {
		return 0, err
	}

	if !a.IsVirtual() {
		return a.Raw, nil
	}

	if forWrite {
		return vm.TranslateForWrite(a.Raw, p.dir, m.cfg)
	}

	return vm.Translate(a.Raw, p.dir, m.cfg)
}

func (m *Machine) target(ref Ref) (addressing.Address, error) {
	if ref.Label == "" {
		return ref.Address, nil
	}

	l, found := m.labels[ref.Label]
	if !found {
		return addressing.Address{}, errors.Wrapf(ErrUnknownLabel, "%q", ref.Label)
	}

	return l.ref, nil
}

func (m *Machine) alloc(p *process, r Alloc) (Result, error) {
	if r.Label != "" {
		if _, taken := m.labels[r.Label]; taken {
			return Result{}, errors.Wrapf(ErrLabelInUse, "%q", r.Label)
		}
	}

	n := uint64(len(r.Bytes))

	ref, addr, res, err := m.allocTarget(p, r.At, n)
	if err != nil || res.Outcome.Reason != mmu.ReasonNone {
		return res, err
	}

	res.Address = addressing.Phys(addr)

	res.Outcome, err = m.mmu.AllocChecked(addr, n, p.pid)
	if err != nil || !res.Outcome.Applied {
		return res, err
	}

	data := make([]byte, n)
	for i, b := range r.Bytes {
		data[i] = byte(b)
	}

	if err := m.store(addr, data); err != nil {
		return res, err
	}

	if r.Label != "" {
		m.labels[r.Label] = label{ref: ref, base: addr, owner: p.pid}
	}

	return res, nil
}

// allocTarget decides where an allocation goes. A rejected outcome in the
// result means there is no place for it.
func (m *Machine) allocTarget(
	p *process,
	at *Ref,
	n uint64,
) (addressing.Address, uint64, Result, error) {
	if at == nil {
		addr, found := m.mmu.FreeAddress(n)
		if !found {
			return addressing.Address{}, 0,
				Result{Outcome: mmu.Rejected(mmu.ReasonNoSpace)}, nil
		}

		return addressing.Phys(addr), addr, Result{}, nil
	}

	ref, err := m.target(*at)
	if err != nil {
		return ref, 0, Result{}, err
	}

	addr, err := m.resolve(p, *at, true)
	if ref.IsVirtual() &&
		fault.Is(err, fault.AddrOutOfRange) &&
		addressing.Canonical(ref.Raw, m.cfg) {
		mapped, mapErr := m.mapOnDemand(p, ref.Raw)
		if mapErr != nil {
			return ref, 0, Result{}, mapErr
		}

		if !mapped {
			return ref, 0, Result{Outcome: mmu.Rejected(mmu.ReasonNoSpace)}, nil
		}

		addr, err = m.resolve(p, *at, true)
	}

	return ref, addr, Result{}, err
}

// mapOnDemand backs the page of vAddr with a free frame.
func (m *Machine) mapOnDemand(p *process, vAddr uint64) (bool, error) {
	frame, found := m.freeFrame()
	if !found {
		return false, nil
	}

	return true, m.Map(p.pid, vAddr, frame)
}

func (m *Machine) freeFrame() (int, bool) {
	for i := 1; i < m.mmu.NumFrames(); i++ {
		if _, mapped := m.mappedFrames[i]; mapped {
			continue
		}

		if m.holdsStack(i) || !m.mmu.IsFree(i) {
			continue
		}

		return i, true
	}

	return 0, false
}

func (m *Machine) holdsStack(frame int) bool {
	p := m.mmu.FrameAt(frame)
	stackEnd := m.cfg.StackBase + m.cfg.StackSize

	return m.cfg.StackSize > 0 &&
		m.cfg.StackBase < p.End() &&
		stackEnd > p.BaseAddress
}

// store writes data across frame boundaries.
func (m *Machine) store(addr uint64, data []byte) error {
	for len(data) > 0 {
		n, err := m.mmu.Write(addr, data)
		if err != nil {
			return err
		}

		if n == 0 {
			return nil
		}

		addr += uint64(n)
		data = data[n:]
	}

	return nil
}

func (m *Machine) dealloc(p *process, r Dealloc) (Result, error) {
	addr, err := m.resolve(p, r.At, false)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Address: addressing.Phys(addr),
		Outcome: m.mmu.DeallocOwned(addr, p.pid),
	}

	if res.Outcome.Applied {
		m.dropLabels(func(l label) bool {
			return l.base == addr && l.owner == p.pid
		})
	}

	return res, nil
}

func (m *Machine) dropLabels(match func(l label) bool) {
	maps.DeleteFunc(m.labels, func(_ string, l label) bool {
		return match(l)
	})
}

func (m *Machine) write(p *process, r Write) (Result, error) {
	addr, err := m.resolve(p, r.At, true)
	if err != nil {
		return Result{}, err
	}

	res := Result{Address: addressing.Phys(addr)}

	_, allocated, err := m.mmu.WriteChecked(addr, []byte{byte(r.Value)})
	if err != nil {
		return res, err
	}

	res.Outcome = outcomeOf(allocated)

	return res, nil
}

func (m *Machine) read(p *process, r Read) (Result, error) {
	addr, err := m.resolve(p, r.At, false)
	if err != nil {
		return Result{}, err
	}

	res := Result{Address: addressing.Phys(addr)}

	b, allocated, err := m.mmu.ReadChecked(addr)
	if err != nil {
		return res, err
	}

	res.Outcome = outcomeOf(allocated)
	res.Value = int8(b)

	return res, nil
}

func outcomeOf(allocated bool) mmu.Outcome {
	if !allocated {
		return mmu.Rejected(mmu.ReasonNotAllocated)
	}

	return mmu.Applied()
}

func (m *Machine) push(r Push) (Result, error) {
	res := Result{Address: addressing.Phys(m.stack.SP())}

	if err := m.stack.Push(byte(r.Value)); err != nil {
		return res, err
	}

	res.Outcome = mmu.Applied()

	return res, nil
}

func (m *Machine) pop() (Result, error) {
	b, err := m.stack.Pop()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Outcome: mmu.Applied(),
		Address: addressing.Phys(m.stack.SP()),
		Value:   int8(b),
	}, nil
}

// exit releases everything the process holds. Memory content is kept.
func (m *Machine) exit(p *process) Result {
	for _, a := range m.mmu.Allocations() {
		if a.Owner == p.pid {
			m.mmu.Dealloc(a.Base)
		}
	}

	maps.DeleteFunc(m.mappedFrames, func(_ int, owner vm.PID) bool {
		return owner == p.pid
	})

	m.dropLabels(func(l label) bool {
		return l.owner == p.pid
	})

	delete(m.processes, p.pid)

	return Result{Outcome: mmu.Applied()}
}
