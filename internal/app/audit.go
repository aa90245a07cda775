package app

import (
	"context"

	"github.com/flowtrail/flowtrail/internal/domain"
)

// AuditService is the read side of the ledger: per-entity history and
// tenant-scoped aggregate views.
type AuditService struct {
	store  domain.EntityStore
	ledger domain.Ledger
}

// NewAuditService creates a service with the given adapters.
func NewAuditService(store domain.EntityStore, ledger domain.Ledger) *AuditService {
	return &AuditService{
		store:  store,
		ledger: ledger,
	}
}

// History returns an entity's full ordered history. The entity lookup runs
// first so cross-tenant requests fail exactly like reads of a missing
// entity.
func (s *AuditService) History(ctx context.Context, actor domain.Actor, entityID string) ([]domain.TransitionRecord, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator); err != nil {
		return nil, err
	}

	if _, err := s.store.GetByID(ctx, actor.TenantID, entityID); err != nil {
		return nil, err
	}

	return s.ledger.HistoryByEntity(ctx, actor.TenantID, entityID)
}

// Aggregate returns ledger counts grouped by action, entity type, and actor.
// Tenant actors are always scoped to their own tenant regardless of what the
// filter asks for; platform actors query across all tenants.
func (s *AuditService) Aggregate(ctx context.Context, actor domain.Actor, filter domain.AggregateFilter) ([]domain.AggregateRow, error) {
	if err := actor.RequireRole(domain.RoleAdmin, domain.RoleOperator, domain.RolePlatform); err != nil {
		return nil, err
	}

	if actor.Role == domain.RolePlatform {
		filter.TenantID = ""
	} else {
		filter.TenantID = actor.TenantID
	}

	return s.ledger.Aggregate(ctx, filter)
}
