package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/flowtrail/flowtrail/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// eventName derives the FSM event that moves an entity into state s. The
// lifecycle graphs are state-addressed (successor sets), while looplab/fsm
// is event-addressed, so each reachable state gets one synthetic event whose
// sources are all states that list it as a successor.
func eventName(s domain.State) string {
	return "to_" + string(s)
}

// buildEvents converts a graph's successor sets into looplab/fsm EventDesc
// format, grouping all sources per destination.
func buildEvents(graph domain.Graph) []loopfsm.EventDesc {
	grouped := make(map[domain.State][]string)
	var order []domain.State

	for src, dsts := range graph.Edges {
		for _, dst := range dsts {
			if _, exists := grouped[dst]; !exists {
				order = append(order, dst)
			}
			grouped[dst] = append(grouped[dst], string(src))
		}
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, dst := range order {
		out = append(out, loopfsm.EventDesc{
			Name: eventName(dst),
			Src:  grouped[dst],
			Dst:  string(dst),
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm. Event
// tables are precomputed per entity type; a short-lived FSM instance is
// created per Validate call because looplab/fsm tracks current state
// internally.
type Validator struct {
	graphs map[domain.EntityType]domain.Graph
	events map[domain.EntityType][]loopfsm.EventDesc
}

// New creates an FSM-backed transition validator for all declared lifecycle
// graphs.
func New() *Validator {
	events := make(map[domain.EntityType][]loopfsm.EventDesc, len(domain.Graphs))
	for typ, graph := range domain.Graphs {
		events[typ] = buildEvents(graph)
	}
	return &Validator{
		graphs: domain.Graphs,
		events: events,
	}
}

// Validate checks that next is a declared state reachable from current in
// the entity type's graph. Requesting the current state again is legal only
// for graphs that allow re-affirmation.
func (v *Validator) Validate(ctx context.Context, typ domain.EntityType, current, next domain.State) error {
	graph, ok := v.graphs[typ]
	if !ok {
		return &domain.UnknownEntityTypeError{Type: typ}
	}

	if !graph.Declared(next) {
		return &domain.InvalidStateError{Type: typ, State: next}
	}

	if current == next {
		if graph.AllowReaffirm {
			return nil
		}
		return &domain.IllegalTransitionError{Type: typ, From: current, To: next}
	}

	machine := loopfsm.NewFSM(string(current), v.events[typ], nil)

	if err := machine.Event(ctx, eventName(next)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return &domain.IllegalTransitionError{Type: typ, From: current, To: next}
		}
		return err
	}

	return nil
}
