package device

// State is the terminal state a device reached in its last cycle.
type State string

const (
	StatePending State = "PENDING"
	StateDone    State = "DONE"
	StateFailed  State = "FAILED"
)
