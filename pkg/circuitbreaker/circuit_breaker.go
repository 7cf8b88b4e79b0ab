package circuitbreaker

import "time"

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() State
}

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker; zero keeps the library default.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	// IsSuccessful lets expected business errors pass without counting as failures.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to State)
}
