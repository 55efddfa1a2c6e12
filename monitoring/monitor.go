// Package monitoring serves the state of running machines over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/dustin/go-humanize"
	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/tracing"
)

// A MachineRegistry knows the machines that can be monitored.
type MachineRegistry interface {
	// Machines lists the names of the machines.
	Machines() []string

	// Inspect calls f with the named machine while it is idle. It returns
	// false if there is no such machine.
	Inspect(name string, f func(m *machine.Machine)) bool
}

// Monitor turns the running machines into a web API.
type Monitor struct {
	registry   MachineRegistry
	counter    *tracing.Counter
	portNumber int
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterMachines sets where the machines are found.
func (m *Monitor) RegisterMachines(r MachineRegistry) {
	m.registry = r
}

// RegisterCounter sets the counter reported by the monitor.
func (m *Monitor) RegisterCounter(c *tracing.Counter) {
	m.counter = c
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/machines", m.listMachines)
	r.HandleFunc("/api/machine/{name}", m.machineDetails)
	r.HandleFunc("/api/machine/{name}/frames", m.machineFrames)
	r.HandleFunc("/api/machine/{name}/field/{field}", m.machineField)
	r.HandleFunc("/api/counters", m.listCounters)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	http.Handle("/", m.router())

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring machines with %s\n", url)

	go func() {
		err := http.Serve(listener, nil)
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) listMachines(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	if m.registry != nil {
		names = append(names, m.registry.Machines()...)
	}

	writeJSON(w, names)
}

func (m *Monitor) snapshotOr404(
	w http.ResponseWriter,
	r *http.Request,
	f func(mc *machine.Machine),
) bool {
	name := mux.Vars(r)["name"]

	if m.registry != nil && m.registry.Inspect(name, f) {
		return true
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Machine not found"))
	dieOnErr(err)

	return false
}

func (m *Monitor) machineDetails(w http.ResponseWriter, r *http.Request) {
	var snapshot machine.Snapshot

	found := m.snapshotOr404(w, r, func(mc *machine.Machine) {
		snapshot = mc.Snapshot()
	})
	if !found {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(3)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) machineField(w http.ResponseWriter, r *http.Request) {
	var snapshot machine.Snapshot

	found := m.snapshotOr404(w, r, func(mc *machine.Machine) {
		snapshot = mc.Snapshot()
	})
	if !found {
		return
	}

	fields := strings.Split(mux.Vars(r)["field"], ".")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(fields)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) machineFrames(w http.ResponseWriter, r *http.Request) {
	var frames []machine.FrameSnapshot

	found := m.snapshotOr404(w, r, func(mc *machine.Machine) {
		frames = mc.Frames()
	})
	if !found {
		return
	}

	writeJSON(w, frames)
}

type countersRsp struct {
	Signals  map[string]uint64 `json:"signals"`
	Faults   map[string]uint64 `json:"faults"`
	Rejected uint64            `json:"rejected"`
}

func (m *Monitor) listCounters(w http.ResponseWriter, _ *http.Request) {
	rsp := countersRsp{
		Signals: map[string]uint64{},
		Faults:  map[string]uint64{},
	}

	if m.counter != nil {
		for s, n := range m.counter.Signals() {
			rsp.Signals[s.String()] = n
		}

		for k, n := range m.counter.Faults() {
			rsp.Faults[k.String()] = n
		}

		rsp.Rejected = m.counter.Rejected()
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
	Memory     string  `json:"memory"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
		Memory:     humanize.IBytes(memorySize.RSS),
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
