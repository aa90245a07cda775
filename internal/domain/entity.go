package domain

import (
	"fmt"
	"time"
)

// EntityType identifies which lifecycle graph governs an entity.
type EntityType string

const (
	TypeProduct   EntityType = "product"
	TypeTransport EntityType = "transport"
	TypeVehicle   EntityType = "vehicle"
)

// State is one node in an entity type's lifecycle graph.
type State string

// Product lifecycle states.
const (
	StateReceived      State = "received"
	StateUnderReview   State = "under_review"
	StateApproved      State = "approved"
	StateRejected      State = "rejected"
	StateInStorage     State = "in_storage"
	StateInPreparation State = "in_preparation"
	StateInShipping    State = "in_shipping"
	StateDelivered     State = "delivered"
	StateReturning     State = "returning"
	StateDisposed      State = "disposed"
	StateCancelled     State = "cancelled"
)

// Transport lifecycle states.
const (
	StateScheduled State = "scheduled"
	StateLoading   State = "loading"
	StateInTransit State = "in_transit"
	StateArrived   State = "arrived"
	StateUnloading State = "unloading"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Vehicle lifecycle states.
const (
	StateAvailable     State = "available"
	StateAssigned      State = "assigned"
	StateInMaintenance State = "in_maintenance"
	StateRetired       State = "retired"
)

// Graph declares the legal lifecycle of one entity type as successor sets.
// Terminal states are declared with an empty successor set. AllowReaffirm
// controls whether requesting the current state again is a recorded no-op
// transition or rejected.
type Graph struct {
	Initial       State
	Edges         map[State][]State
	AllowReaffirm bool
}

// Declared reports whether s is a node of the graph.
func (g Graph) Declared(s State) bool {
	_, ok := g.Edges[s]
	return ok
}

// Terminal reports whether s has no outgoing edges.
func (g Graph) Terminal(s State) bool {
	return len(g.Edges[s]) == 0
}

// Successors returns the permitted next states from s.
func (g Graph) Successors(s State) []State {
	return g.Edges[s]
}

// Validate checks graph well-formedness: the initial state is declared and
// every edge target is a declared node. Non-terminal states have outgoing
// edges by construction (a declared state with none is terminal).
func (g Graph) Validate() error {
	if !g.Declared(g.Initial) {
		return fmt.Errorf("initial state %q is not declared", g.Initial)
	}
	for src, dsts := range g.Edges {
		for _, dst := range dsts {
			if !g.Declared(dst) {
				return fmt.Errorf("edge %s -> %s targets an undeclared state", src, dst)
			}
		}
	}
	return nil
}

// Graphs maps each entity type to its lifecycle graph.
// This is domain knowledge consumed by the FSM adapter.
var Graphs = map[EntityType]Graph{
	TypeProduct: {
		Initial: StateReceived,
		Edges: map[State][]State{
			StateReceived:      {StateUnderReview},
			StateUnderReview:   {StateApproved, StateRejected},
			StateRejected:      {StateReturning},
			StateApproved:      {StateInStorage},
			StateInStorage:     {StateInPreparation, StateInShipping},
			StateInPreparation: {StateInShipping, StateCancelled},
			StateInShipping:    {StateDelivered},
			StateDelivered:     {},
			StateReturning:     {StateReceived, StateDisposed},
			StateDisposed:      {},
			StateCancelled:     {StateInStorage},
		},
	},
	TypeTransport: {
		Initial: StateScheduled,
		Edges: map[State][]State{
			StateScheduled: {StateLoading, StateAborted},
			StateLoading:   {StateInTransit, StateAborted},
			StateInTransit: {StateArrived},
			StateArrived:   {StateUnloading},
			StateUnloading: {StateCompleted},
			StateCompleted: {},
			StateAborted:   {},
		},
	},
	TypeVehicle: {
		Initial:       StateAvailable,
		AllowReaffirm: true,
		Edges: map[State][]State{
			StateAvailable:     {StateAssigned, StateInMaintenance, StateRetired},
			StateAssigned:      {StateAvailable, StateInMaintenance},
			StateInMaintenance: {StateAvailable, StateRetired},
			StateRetired:       {},
		},
	},
}

// GraphFor returns the lifecycle graph for an entity type.
func GraphFor(t EntityType) (Graph, bool) {
	g, ok := Graphs[t]
	return g, ok
}

// Entity is a trackable item (product, transport, vehicle) owned by exactly
// one tenant. TenantID never changes after creation; State only changes
// through the transition engine.
type Entity struct {
	ID               string
	TenantID         string
	Type             EntityType
	Code             string
	Name             string
	State            State
	Location         string
	Attributes       map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastTransitionAt time.Time
}

// NewEntity creates an entity in the initial state of its type's graph.
func NewEntity(id, tenantID string, typ EntityType, code, name, location string, attributes map[string]any) (Entity, error) {
	graph, ok := GraphFor(typ)
	if !ok {
		return Entity{}, &UnknownEntityTypeError{Type: typ}
	}

	now := time.Now().UTC()
	return Entity{
		ID:               id,
		TenantID:         tenantID,
		Type:             typ,
		Code:             code,
		Name:             name,
		State:            graph.Initial,
		Location:         location,
		Attributes:       attributes,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastTransitionAt: now,
	}, nil
}
