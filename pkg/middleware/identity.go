package middleware

import (
	"context"
	"net/http"
)

// Identity is the authenticated caller as asserted by the upstream auth
// service. This service never authenticates; it trusts the gateway-injected
// headers the same way it trusts any other collaborator.
type Identity struct {
	UserID  string
	Role    string
	CoachID string
}

const (
	RoleClient = "client"
	RoleCoach  = "coach"
	RoleAdmin  = "admin"
)

const (
	headerUserID  = "X-User-ID"
	headerRole    = "X-User-Role"
	headerCoachID = "X-Coach-ID"
)

type identityKeyType struct{}

var identityKey identityKeyType

func ExtractIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity{
				UserID:  r.Header.Get(headerUserID),
				Role:    r.Header.Get(headerRole),
				CoachID: r.Header.Get(headerCoachID),
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

func (id Identity) IsCoach() bool {
	return id.Role == RoleCoach && id.CoachID != ""
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}
