package mmu

// Reason explains why a checked operation did not take effect.
type Reason int

// The reasons a checked operation can be rejected.
const (
	ReasonNone Reason = iota
	ReasonAllocated
	ReasonOverlap
	ReasonStack
	ReasonNotAllocated
	ReasonNotOwner
	ReasonEmpty
	ReasonNoSpace
)

var reasonNames = [...]string{
	ReasonNone:         "none",
	ReasonAllocated:    "address already allocated",
	ReasonOverlap:      "range overlaps an allocation",
	ReasonStack:        "address in stack segment",
	ReasonNotAllocated: "address not allocated",
	ReasonNotOwner:     "allocation owned by another process",
	ReasonEmpty:        "empty allocation",
	ReasonNoSpace:      "no free range large enough",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}

	return reasonNames[r]
}

// An Outcome reports whether a checked operation changed any state. A
// rejected operation is a no-op, not a fault.
type Outcome struct {
	Applied bool
	Reason  Reason
}

// Applied is the outcome of an operation that took effect.
func Applied() Outcome {
	return Outcome{Applied: true}
}

// Rejected is the outcome of an operation that left the state untouched.
func Rejected(r Reason) Outcome {
	return Outcome{Reason: r}
}

func (o Outcome) String() string {
	if o.Applied {
		return "applied"
	}

	return "rejected: " + o.Reason.String()
}
