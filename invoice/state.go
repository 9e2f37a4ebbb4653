package invoice

// State is the lifecycle position of an invoice.
type State string

const (
	// StateOpen has an outstanding balance.
	StateOpen State = "open"
	// StatePaidPending has a zero balance awaiting creditor confirmation.
	StatePaidPending State = "paid_pending"
	// StateSettled is terminal.
	StateSettled State = "settled"
)

// String implements fmt.Stringer.
func (s State) String() string { return string(s) }

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Payments keep an open invoice open or drain it to paid-pending, and a
// paid-pending invoice accepts payments as full refunds. Only confirmation
// reaches settled, and nothing leaves it.
var transitions = map[State]map[State]struct{}{
	StateOpen:        {StateOpen: {}, StatePaidPending: {}},
	StatePaidPending: {StatePaidPending: {}, StateSettled: {}},
	StateSettled:     {},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
