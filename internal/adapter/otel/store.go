package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowtrail/flowtrail/internal/domain"
)

const tracerName = "github.com/flowtrail/flowtrail/internal/adapter/otel"

// TracingStore wraps a domain.EntityStore with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingStore struct {
	next   domain.EntityStore
	tracer trace.Tracer
}

// Compile-time check: TracingStore implements domain.EntityStore.
var _ domain.EntityStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.EntityStore) *TracingStore {
	return &TracingStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStore) Create(ctx context.Context, entity domain.Entity, record domain.TransitionRecord) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.Create",
		trace.WithAttributes(
			attribute.String("entity.id", entity.ID),
			attribute.String("entity.type", string(entity.Type)),
			attribute.String("tenant.id", entity.TenantID),
		),
	)
	defer span.End()

	err := s.next.Create(ctx, entity, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) GetByID(ctx context.Context, tenantID, id string) (domain.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "EntityStore.GetByID",
		trace.WithAttributes(
			attribute.String("entity.id", id),
			attribute.String("tenant.id", tenantID),
		),
	)
	defer span.End()

	entity, err := s.next.GetByID(ctx, tenantID, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return entity, err
}

func (s *TracingStore) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]domain.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "EntityStore.List",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Type != "" {
		span.SetAttributes(attribute.String("filter.type", string(filter.Type)))
	}
	if filter.State != nil {
		span.SetAttributes(attribute.String("filter.state", string(*filter.State)))
	}

	entities, err := s.next.List(ctx, tenantID, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(entities)))
	}
	return entities, err
}

func (s *TracingStore) UpdateFields(ctx context.Context, entity domain.Entity, record domain.TransitionRecord) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.UpdateFields",
		trace.WithAttributes(
			attribute.String("entity.id", entity.ID),
			attribute.String("tenant.id", entity.TenantID),
		),
	)
	defer span.End()

	err := s.next.UpdateFields(ctx, entity, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) ApplyTransition(ctx context.Context, entity domain.Entity, record domain.TransitionRecord) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.ApplyTransition",
		trace.WithAttributes(
			attribute.String("entity.id", entity.ID),
			attribute.String("tenant.id", entity.TenantID),
			attribute.String("entity.state", string(entity.State)),
		),
	)
	defer span.End()

	if record.PreviousState != nil {
		span.SetAttributes(attribute.String("entity.previous_state", string(*record.PreviousState)))
	}

	err := s.next.ApplyTransition(ctx, entity, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) Delete(ctx context.Context, tenantID, id string, record domain.TransitionRecord) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.Delete",
		trace.WithAttributes(
			attribute.String("entity.id", id),
			attribute.String("tenant.id", tenantID),
		),
	)
	defer span.End()

	err := s.next.Delete(ctx, tenantID, id, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TracingLedger wraps a domain.Ledger with OpenTelemetry tracing.
type TracingLedger struct {
	next   domain.Ledger
	tracer trace.Tracer
}

// Compile-time check: TracingLedger implements domain.Ledger.
var _ domain.Ledger = (*TracingLedger)(nil)

// NewTracingLedger creates a tracing decorator around the given ledger.
func NewTracingLedger(next domain.Ledger) *TracingLedger {
	return &TracingLedger{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (l *TracingLedger) HistoryByEntity(ctx context.Context, tenantID, entityID string) ([]domain.TransitionRecord, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.HistoryByEntity",
		trace.WithAttributes(
			attribute.String("entity.id", entityID),
			attribute.String("tenant.id", tenantID),
		),
	)
	defer span.End()

	records, err := l.next.HistoryByEntity(ctx, tenantID, entityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(records)))
	}
	return records, err
}

func (l *TracingLedger) Aggregate(ctx context.Context, filter domain.AggregateFilter) ([]domain.AggregateRow, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Aggregate")
	defer span.End()

	if filter.TenantID != "" {
		span.SetAttributes(attribute.String("tenant.id", filter.TenantID))
	}
	if filter.Action != "" {
		span.SetAttributes(attribute.String("filter.action", string(filter.Action)))
	}
	if filter.EntityType != "" {
		span.SetAttributes(attribute.String("filter.type", string(filter.EntityType)))
	}

	rows, err := l.next.Aggregate(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(rows)))
	}
	return rows, err
}
