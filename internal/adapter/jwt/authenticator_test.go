package jwt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/flowtrail/flowtrail/internal/adapter/jwt"
	"github.com/flowtrail/flowtrail/internal/domain"
)

const testSecret = "test-secret-key"

func issue(t *testing.T, auth *jwt.Authenticator, actor domain.Actor) string {
	t.Helper()
	token, err := auth.Issue(actor, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	auth := jwt.New(testSecret)
	ctx := context.Background()

	want := domain.Actor{ID: "op-1", TenantID: "tenant-a", Role: domain.RoleOperator}
	token := issue(t, auth, want)

	got, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got != want {
		t.Errorf("actor = %+v, want %+v", got, want)
	}

	// The "Bearer " prefix is accepted too.
	got, err = auth.Authenticate(ctx, "Bearer "+token)
	if err != nil {
		t.Fatalf("Authenticate with Bearer prefix failed: %v", err)
	}
	if got != want {
		t.Errorf("actor = %+v, want %+v", got, want)
	}
}

func TestAuthenticate_PlatformActorHasNoTenant(t *testing.T) {
	auth := jwt.New(testSecret)

	// Even if a platform token smuggles a tenant id, it is dropped.
	token := issue(t, auth, domain.Actor{ID: "plat-1", TenantID: "tenant-a", Role: domain.RolePlatform})

	got, err := auth.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.TenantID != "" {
		t.Errorf("TenantID = %q, want empty", got.TenantID)
	}
	if got.Role != domain.RolePlatform {
		t.Errorf("Role = %q, want %q", got.Role, domain.RolePlatform)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	auth := jwt.New(testSecret)
	otherAuth := jwt.New("some-other-secret")
	ctx := context.Background()

	expired, err := auth.Issue(domain.Actor{ID: "op-1", TenantID: "tenant-a", Role: domain.RoleOperator}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Signed with the right secret but an unexpected algorithm.
	wrongAlg, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, jwtlib.RegisteredClaims{
		Subject:   "op-1",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	tests := []struct {
		name       string
		credential string
	}{
		{"empty credential", ""},
		{"bare bearer prefix", "Bearer "},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", issue(t, otherAuth, domain.Actor{ID: "op-1", TenantID: "tenant-a", Role: domain.RoleOperator})},
		{"expired token", expired},
		{"wrong algorithm", wrongAlg},
		{"missing subject", issue(t, auth, domain.Actor{TenantID: "tenant-a", Role: domain.RoleOperator})},
		{"unknown role", issue(t, auth, domain.Actor{ID: "op-1", TenantID: "tenant-a", Role: "superuser"})},
		{"tenant role without tenant", issue(t, auth, domain.Actor{ID: "op-1", Role: domain.RoleAdmin})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.credential)
			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Errorf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}
