package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowtrail/flowtrail/internal/domain"
)

// maxTransitionAttempts bounds how often a transition is re-validated after
// losing a write race. Each retry observes the committed state, so losers of
// a race normally fail validation on the first re-read.
const maxTransitionAttempts = 3

// CreateEntityInput carries the caller-supplied fields for a new entity.
type CreateEntityInput struct {
	Type       domain.EntityType
	Code       string
	Name       string
	Location   string
	Attributes map[string]any
}

// FieldPatch carries a partial update of non-state entity fields. Nil
// pointers leave the field untouched.
type FieldPatch struct {
	Name       *string
	Location   *string
	Attributes map[string]any
}

// TrackingService is the transition engine and entity-store orchestration:
// it enforces role and tenant boundaries, validates state changes against
// the lifecycle graph, and ensures every successful mutation lands in the
// ledger atomically with the entity write.
type TrackingService struct {
	store     domain.EntityStore
	validator domain.TransitionValidator
	publisher domain.EventPublisher
}

// NewTrackingService creates a service with the given adapters.
func NewTrackingService(store domain.EntityStore, validator domain.TransitionValidator, publisher domain.EventPublisher) *TrackingService {
	return &TrackingService{
		store:     store,
		validator: validator,
		publisher: publisher,
	}
}

// Create persists a new entity in its type's initial state together with its
// creation record.
func (s *TrackingService) Create(ctx context.Context, actor domain.Actor, in CreateEntityInput) (domain.Entity, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return domain.Entity{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("generating entity id: %w", err)
	}

	entity, err := domain.NewEntity(id, actor.TenantID, in.Type, in.Code, in.Name, in.Location, in.Attributes)
	if err != nil {
		return domain.Entity{}, err
	}

	record := newRecord(entity, actor, domain.ActionCreate, nil, "", in.Location)

	if err := s.store.Create(ctx, entity, record); err != nil {
		return domain.Entity{}, err
	}

	s.publish(ctx, record, entity)

	return entity, nil
}

// Get returns an entity within the actor's tenant.
func (s *TrackingService) Get(ctx context.Context, actor domain.Actor, id string) (domain.Entity, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return domain.Entity{}, err
	}
	return s.store.GetByID(ctx, actor.TenantID, id)
}

// List returns the actor's tenant entities matching the filter.
func (s *TrackingService) List(ctx context.Context, actor domain.Actor, filter domain.ListFilter) ([]domain.Entity, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return nil, err
	}
	return s.store.List(ctx, actor.TenantID, filter)
}

// Transition applies a requested state change. The new state must be a
// declared state reachable from the current one; on success exactly one
// record is appended and the snapshot updated, atomically. Concurrent
// requests are serialized by the datastore: a loser re-validates against the
// winner's committed state.
func (s *TrackingService) Transition(ctx context.Context, actor domain.Actor, id string, next domain.State, reason, location string) (domain.Entity, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return domain.Entity{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		entity, err := s.store.GetByID(ctx, actor.TenantID, id)
		if err != nil {
			return domain.Entity{}, err
		}

		if err := s.validator.Validate(ctx, entity.Type, entity.State, next); err != nil {
			return domain.Entity{}, err
		}

		previous := entity.State
		now := time.Now().UTC()
		entity.State = next
		entity.LastTransitionAt = now
		entity.UpdatedAt = now
		if location != "" {
			entity.Location = location
		}

		record := newRecord(entity, actor, domain.ActionTransition, &previous, reason, entity.Location)

		err = s.store.ApplyTransition(ctx, entity, record)
		if errors.Is(err, domain.ErrStaleState) {
			lastErr = err
			continue
		}
		if err != nil {
			return domain.Entity{}, err
		}

		s.publish(ctx, record, entity)

		return entity, nil
	}

	return domain.Entity{}, lastErr
}

// UpdateFields mutates non-state attributes and appends the matching audit
// record in the same atomic unit. State is never writable through this path.
func (s *TrackingService) UpdateFields(ctx context.Context, actor domain.Actor, id string, patch FieldPatch) (domain.Entity, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return domain.Entity{}, err
	}

	entity, err := s.store.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Entity{}, err
	}

	if patch.Name != nil {
		entity.Name = *patch.Name
	}
	if patch.Location != nil {
		entity.Location = *patch.Location
	}
	if patch.Attributes != nil {
		entity.Attributes = patch.Attributes
	}
	entity.UpdatedAt = time.Now().UTC()

	current := entity.State
	record := newRecord(entity, actor, domain.ActionUpdate, &current, "", entity.Location)

	if err := s.store.UpdateFields(ctx, entity, record); err != nil {
		return domain.Entity{}, err
	}

	s.publish(ctx, record, entity)

	return entity, nil
}

// Delete soft-deletes an entity, recording the terminal audit action.
// Existing history is untouched.
func (s *TrackingService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return err
	}

	entity, err := s.store.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}

	current := entity.State
	record := newRecord(entity, actor, domain.ActionDelete, &current, "", entity.Location)

	if err := s.store.Delete(ctx, actor.TenantID, id, record); err != nil {
		return err
	}

	s.publish(ctx, record, entity)

	return nil
}

// publish emits a post-commit notification. The mutation has already
// committed, so a publish failure is logged rather than returned: surfacing
// it would report a durably applied change as failed.
func (s *TrackingService) publish(ctx context.Context, record domain.TransitionRecord, entity domain.Entity) {
	if err := s.publisher.Publish(ctx, record, entity); err != nil {
		slog.WarnContext(ctx, "publishing movement notification failed",
			"record_id", record.ID,
			"entity_id", entity.ID,
			"action", string(record.Action),
			"error", err,
		)
	}
}

// newRecord builds the ledger entry for a mutation on entity by actor.
func newRecord(entity domain.Entity, actor domain.Actor, action domain.Action, previous *domain.State, reason, location string) domain.TransitionRecord {
	return domain.TransitionRecord{
		ID:            uuid.NewString(),
		EntityID:      entity.ID,
		TenantID:      entity.TenantID,
		EntityType:    entity.Type,
		Action:        action,
		PreviousState: previous,
		NewState:      entity.State,
		ActorID:       actor.ID,
		Reason:        reason,
		Location:      location,
		RecordedAt:    time.Now().UTC(),
	}
}
