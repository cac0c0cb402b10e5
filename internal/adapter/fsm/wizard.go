package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/hollowbrook/stablekeep/internal/domain"
)

// Compile-time check: Wizard implements domain.StepValidator.
var _ domain.StepValidator = (*Wizard)(nil)

// events converts domain.StepTransitions into looplab/fsm EventDesc format.
// Transitions with the same event and destination are consolidated into a
// single EventDesc with multiple source steps (e.g. EventCancel reaches
// "cancelled" from every working step).
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range domain.StepTransitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Wizard implements domain.StepValidator using looplab/fsm. A short-lived
// FSM instance is created per Apply call, initialized with the wizard's
// current step; looplab/fsm is stateful, so instances are never shared.
type Wizard struct{}

// New creates a new FSM-backed wizard step validator.
func New() *Wizard {
	return &Wizard{}
}

// Apply checks whether the event is valid from the current step and returns
// the destination step. Returns a *domain.NavigationError when the move is
// not in the transition table. Step gates are the workflow's concern; this
// only validates the navigation shape.
func (w *Wizard) Apply(ctx context.Context, current domain.Step, event domain.StepEvent) (domain.Step, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.NavigationError{
				Event:   event,
				Current: current,
			}
		}
		return "", err
	}

	return domain.Step(machine.Current()), nil
}
