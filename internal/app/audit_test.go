package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flowtrail/flowtrail/internal/app"
	"github.com/flowtrail/flowtrail/internal/domain"
)

func TestHistory_OrderedFromCreation(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockPublisher{})
	audit := app.NewAuditService(store, store)
	ctx := context.Background()

	e := mustCreate(t, svc, operatorA, "SKU-1")
	if _, err := svc.Transition(ctx, operatorA, e.ID, domain.StateUnderReview, "", ""); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}
	if _, err := svc.Transition(ctx, operatorA, e.ID, domain.StateApproved, "", ""); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}

	history, err := audit.History(ctx, operatorA, e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}

	if history[0].Action != domain.ActionCreate {
		t.Errorf("history[0].Action = %q, want %q", history[0].Action, domain.ActionCreate)
	}
	if history[0].PreviousState != nil {
		t.Errorf("history[0].PreviousState = %v, want nil", *history[0].PreviousState)
	}
	wantStates := []domain.State{domain.StateReceived, domain.StateUnderReview, domain.StateApproved}
	for i, want := range wantStates {
		if history[i].NewState != want {
			t.Errorf("history[%d].NewState = %q, want %q", i, history[i].NewState, want)
		}
	}
}

func TestHistory_CrossTenantIsNotFound(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockPublisher{})
	audit := app.NewAuditService(store, store)

	e := mustCreate(t, svc, operatorA, "SKU-1")

	_, err := audit.History(context.Background(), adminB, e.ID)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestHistory_PlatformRoleForbidden(t *testing.T) {
	store := newMockStore()
	audit := app.NewAuditService(store, store)

	_, err := audit.History(context.Background(), platform, "whatever")
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestAggregate_TenantActorIsAlwaysScoped(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockPublisher{})
	audit := app.NewAuditService(store, store)
	ctx := context.Background()

	mustCreate(t, svc, operatorA, "SKU-1")
	mustCreate(t, svc, adminB, "SKU-1")

	// Asking for another tenant's data is silently overridden.
	rows, err := audit.Aggregate(ctx, operatorA, domain.AggregateFilter{TenantID: "tenant-b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ActorID != operatorA.ID {
		t.Errorf("ActorID = %q, want %q", rows[0].ActorID, operatorA.ID)
	}
	if rows[0].Count != 1 {
		t.Errorf("Count = %d, want 1", rows[0].Count)
	}
}

func TestAggregate_PlatformActorSpansTenants(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockPublisher{})
	audit := app.NewAuditService(store, store)
	ctx := context.Background()

	mustCreate(t, svc, operatorA, "SKU-1")
	mustCreate(t, svc, adminB, "SKU-1")

	rows, err := audit.Aggregate(ctx, platform, domain.AggregateFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var total int64
	for _, row := range rows {
		total += row.Count
	}
	if total != 2 {
		t.Errorf("total count = %d, want 2", total)
	}
}

func TestAggregate_ActionFilter(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockPublisher{})
	audit := app.NewAuditService(store, store)
	ctx := context.Background()

	e := mustCreate(t, svc, operatorA, "SKU-1")
	if _, err := svc.Transition(ctx, operatorA, e.ID, domain.StateUnderReview, "", ""); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}

	rows, err := audit.Aggregate(ctx, operatorA, domain.AggregateFilter{Action: domain.ActionTransition})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Action != domain.ActionTransition {
		t.Errorf("Action = %q, want %q", rows[0].Action, domain.ActionTransition)
	}
}
