package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/voicesteer/internal/resilience"
)

// Heartbeat returns a checker that fails when last reports no activity
// within maxAge. A zero time means the component has not completed any work
// yet, which also fails. now defaults to time.Now.
func Heartbeat(name string, last func() time.Time, maxAge time.Duration, now func() time.Time) Checker {
	if now == nil {
		now = time.Now
	}
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			t := last()
			if t.IsZero() {
				return errors.New("no iteration completed yet")
			}
			if age := now().Sub(t); age > maxAge {
				return fmt.Errorf("last iteration %s ago (max %s)", age.Round(time.Millisecond), maxAge)
			}
			return nil
		},
	}
}

// Breakers returns a checker that fails when every engine breaker is open,
// i.e. no engine would be tried for the next utterance.
func Breakers(name string, breakers func() []*resilience.CircuitBreaker) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			bs := breakers()
			if len(bs) == 0 {
				return errors.New("no engines configured")
			}
			open := make([]string, 0, len(bs))
			for _, cb := range bs {
				if cb.State() != resilience.StateOpen {
					return nil
				}
				open = append(open, cb.Name())
			}
			return fmt.Errorf("all circuit breakers open: %s", strings.Join(open, ", "))
		},
	}
}
