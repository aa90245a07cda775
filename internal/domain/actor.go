package domain

// Role classifies what an actor may do within (or across) tenants.
type Role string

const (
	// RoleAdmin manages entities and reads audit data within its tenant.
	RoleAdmin Role = "admin"
	// RoleOperator records day-to-day movements within its tenant.
	RoleOperator Role = "operator"
	// RolePlatform is the platform operator: read-only aggregate views
	// across all tenants, no entity access and no mutations.
	RolePlatform Role = "platform"
)

// ValidRole reports whether r is a declared role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleOperator, RolePlatform:
		return true
	}
	return false
}

// Actor is the authenticated identity performing an operation. An actor
// belongs to exactly one tenant, except platform actors which carry no
// tenant at all.
type Actor struct {
	ID       string
	TenantID string
	Role     Role
}

// RequireRole returns a ForbiddenError unless the actor's role is in the
// allowed set. Role checks run before any tenant-scoping check.
func (a Actor) RequireRole(allowed ...Role) error {
	for _, r := range allowed {
		if a.Role == r {
			return nil
		}
	}
	return &ForbiddenError{ActorID: a.ID, Role: a.Role}
}
