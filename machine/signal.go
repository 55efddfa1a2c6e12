package machine

import "fmt"

// Signal is the one-byte code reported back for every request.
type Signal uint8

// The signals, with the values clients rely on.
const (
	SignalExit    Signal = 0
	SignalAlloc   Signal = 1
	SignalDealloc Signal = 2
	SignalWrite   Signal = 3
	SignalRead    Signal = 4
	SignalDebug   Signal = 5
)

func (s Signal) String() string {
	switch s {
	case SignalExit:
		return "Exit"
	case SignalAlloc:
		return "Alloc"
	case SignalDealloc:
		return "Dealloc"
	case SignalWrite:
		return "Write"
	case SignalRead:
		return "Read"
	case SignalDebug:
		return "Debug"
	default:
		return fmt.Sprintf("Signal(%d)", uint8(s))
	}
}
