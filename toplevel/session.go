package toplevel

import (
	"sync"

	"github.com/sarchlab/mmusim/lang"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/vm"
)

// A Session is one client connection driving its own machine.
type Session struct {
	lock    sync.Mutex
	machine *machine.Machine
	pid     vm.PID
}

func newSession(m *machine.Machine) *Session {
	return &Session{
		machine: m,
		pid:     m.Spawn(),
	}
}

// Name returns the name of the machine of the session.
func (s *Session) Name() string {
	return s.machine.Name()
}

// Exec runs one command. The returned signal is what the client receives.
func (s *Session) Exec(cmd lang.Command) (machine.Signal, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.machine.Exec(s.pid, cmd.Request)
	if err != nil {
		return machine.SignalDebug, err
	}

	return res.Signal, nil
}

// Inspect calls f with the machine while no command runs.
func (s *Session) Inspect(f func(m *machine.Machine)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	f(s.machine)
}
