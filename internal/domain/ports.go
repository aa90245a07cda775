package domain

import "context"

// ListFilter holds optional criteria for listing entities within a tenant.
type ListFilter struct {
	Type   EntityType
	State  *State
	Limit  int
	Offset int
}

// EntityStore defines the persistence contract for entity snapshots.
// Every mutator writes the entity change and its ledger record as one atomic
// unit: both succeed or neither does.
type EntityStore interface {
	// Create inserts a new entity together with its creation record.
	// Returns a CodeConflictError if the code is taken within the tenant.
	Create(ctx context.Context, entity Entity, record TransitionRecord) error

	// GetByID returns the entity, or ErrEntityNotFound if it is absent,
	// deleted, or owned by a different tenant.
	GetByID(ctx context.Context, tenantID, id string) (Entity, error)

	// List returns the tenant's entities matching the filter.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Entity, error)

	// UpdateFields persists non-state attribute changes plus an audit record.
	UpdateFields(ctx context.Context, entity Entity, record TransitionRecord) error

	// ApplyTransition persists a state change guarded by the record's
	// PreviousState: if the stored state no longer matches, it returns
	// ErrStaleState and writes nothing.
	ApplyTransition(ctx context.Context, entity Entity, record TransitionRecord) error

	// Delete soft-deletes the entity and appends the terminal audit record.
	// Existing ledger records are never touched.
	Delete(ctx context.Context, tenantID, id string, record TransitionRecord) error
}

// Ledger defines read access to the append-only movement/audit trail.
type Ledger interface {
	// HistoryByEntity returns the entity's full history, oldest first,
	// scoped to the tenant.
	HistoryByEntity(ctx context.Context, tenantID, entityID string) ([]TransitionRecord, error)

	// Aggregate returns record counts grouped by action, entity type, and
	// actor, narrowed by the filter.
	Aggregate(ctx context.Context, filter AggregateFilter) ([]AggregateRow, error)
}

// TransitionValidator decides whether a state change is legal per the entity
// type's lifecycle graph.
type TransitionValidator interface {
	Validate(ctx context.Context, typ EntityType, current, next State) error
}

// EventPublisher defines the contract for emitting movement notifications
// after a mutation has committed. Publishing never feeds back into the
// ledger or the transition engine.
type EventPublisher interface {
	Publish(ctx context.Context, record TransitionRecord, entity Entity) error
}

// Authenticator resolves a caller credential into an actor identity.
type Authenticator interface {
	// Authenticate returns the actor, or ErrUnauthenticated.
	Authenticate(ctx context.Context, credential string) (Actor, error)
}
