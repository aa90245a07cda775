package domain

import "time"

// Action classifies what a ledger record captures.
type Action string

const (
	ActionCreate     Action = "create"
	ActionTransition Action = "transition"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
)

// TransitionRecord is one immutable movement/audit ledger entry. Records are
// append-only: once persisted they are never updated or deleted, and together
// they form an entity's full ordered history. PreviousState is nil only for
// the creation record.
type TransitionRecord struct {
	ID            string
	EntityID      string
	TenantID      string
	EntityType    EntityType
	Action        Action
	PreviousState *State
	NewState      State
	ActorID       string
	Reason        string
	Location      string
	RecordedAt    time.Time
}

// AggregateFilter narrows an aggregate ledger query. All set fields combine
// conjunctively. An empty TenantID means unscoped; only the application layer
// may leave it empty, and only for platform actors.
type AggregateFilter struct {
	TenantID   string
	From       *time.Time
	To         *time.Time
	ActorID    string
	Action     Action
	EntityType EntityType
}

// AggregateRow is one group in an aggregate ledger query result.
type AggregateRow struct {
	Action     Action
	EntityType EntityType
	ActorID    string
	Count      int64
}
