package implementation

import (
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type gobreakerCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func NewCircuitBreaker(settings circuitbreaker.Settings) circuitbreaker.CircuitBreaker {
	gs := gobreaker.Settings{
		Name:         settings.Name,
		Timeout:      settings.OpenTimeout,
		IsSuccessful: settings.IsSuccessful,
	}
	if n := settings.ConsecutiveFailures; n > 0 {
		gs.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n
		}
	}
	if settings.OnStateChange != nil {
		gs.OnStateChange = func(name string, from, to gobreaker.State) {
			settings.OnStateChange(name, toState(from), toState(to))
		}
	}
	return &gobreakerCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[any](gs),
	}
}

func (g *gobreakerCircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return g.cb.Execute(fn)
}

func (g *gobreakerCircuitBreaker) State() circuitbreaker.State {
	return toState(g.cb.State())
}

func toState(s gobreaker.State) circuitbreaker.State {
	switch s {
	case gobreaker.StateHalfOpen:
		return circuitbreaker.HalfOpen
	case gobreaker.StateOpen:
		return circuitbreaker.Open
	default:
		return circuitbreaker.Closed
	}
}
