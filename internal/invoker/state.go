package invoker

// State is the lifecycle position of a single invocation.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// validNext lists the transitions allowed from each state. There are no
// retries: a failed or succeeded call never goes back to spawning.
var validNext = map[State][]State{
	StateIdle:     {StateSpawning},
	StateSpawning: {StateRunning, StateFailed},
	StateRunning:  {StateSucceeded, StateFailed},
}

func (s State) canMoveTo(next State) bool {
	for _, n := range validNext[s] {
		if n == next {
			return true
		}
	}
	return false
}
