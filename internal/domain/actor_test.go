package domain_test

import (
	"errors"
	"testing"

	"github.com/flowtrail/flowtrail/internal/domain"
)

func TestActor_RequireRole_Allowed(t *testing.T) {
	actor := domain.Actor{ID: "a-1", TenantID: "t-1", Role: domain.RoleOperator}

	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActor_RequireRole_Denied(t *testing.T) {
	actor := domain.Actor{ID: "p-1", Role: domain.RolePlatform}

	err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator)
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if forbidden.ActorID != "p-1" {
		t.Errorf("ActorID = %q, want %q", forbidden.ActorID, "p-1")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []domain.Role{domain.RoleAdmin, domain.RoleOperator, domain.RolePlatform} {
		if !domain.ValidRole(r) {
			t.Errorf("ValidRole(%q) = false, want true", r)
		}
	}

	if domain.ValidRole("superuser") {
		t.Error(`ValidRole("superuser") = true, want false`)
	}
}
