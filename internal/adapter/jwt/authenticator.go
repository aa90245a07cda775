package jwt

import (
	"context"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/flowtrail/flowtrail/internal/domain"
)

// Compile-time check: Authenticator implements domain.Authenticator.
var _ domain.Authenticator = (*Authenticator)(nil)

// Claims is the token payload: the registered subject carries the actor id,
// tid the owning tenant, role the actor's role.
type Claims struct {
	TenantID string `json:"tid,omitempty"`
	Role     string `json:"role"`
	jwtlib.RegisteredClaims
}

// Authenticator resolves HS256 bearer tokens into actors. Any parse,
// signature, expiry, or claim problem collapses into ErrUnauthenticated so
// callers learn nothing about why a credential was rejected.
type Authenticator struct {
	secret []byte
}

// New creates an authenticator verifying tokens against the given secret.
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate verifies a credential (with or without a "Bearer " prefix)
// and returns the actor it names.
func (a *Authenticator) Authenticate(_ context.Context, credential string) (domain.Actor, error) {
	token := strings.TrimSpace(credential)
	if after, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = after
	}
	if token == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwtlib.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	role := domain.Role(claims.Role)
	if claims.Subject == "" || !domain.ValidRole(role) {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	// Platform actors carry no tenant; everyone else must.
	if role == domain.RolePlatform {
		claims.TenantID = ""
	} else if claims.TenantID == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	return domain.Actor{
		ID:       claims.Subject,
		TenantID: claims.TenantID,
		Role:     role,
	}, nil
}

// Issue signs a token for the given actor, valid for ttl. Used by tests and
// operator tooling; the service itself only verifies.
func (a *Authenticator) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: actor.TenantID,
		Role:     string(actor.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}
