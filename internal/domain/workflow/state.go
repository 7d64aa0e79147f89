package workflow

// State represents a lifecycle state of a workflow-managed record
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateOpen      State = "OPEN"
	StateResolved  State = "RESOLVED"
	StateClosed    State = "CLOSED"
	StateOverdue   State = "OVERDUE"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateRunning:   true,
	StateCompleted: true,
	StateCancelled: true,
	StateApproved:  true,
	StateRejected:  true,
	StateOpen:      true,
	StateResolved:  true,
	StateClosed:    true,
	StateOverdue:   true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCancelled: true,
	StateApproved:  true,
	StateRejected:  true,
	StateResolved:  true,
	StateClosed:    true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
