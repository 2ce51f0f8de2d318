// Package context carries request-scoped identity and tracing values.
package context

import (
	"context"
)

// SystemActor is recorded as the creator of changes made by background jobs.
const SystemActor = "system"

// UserContext contains the authenticated actor.
// Authorization happens upstream; the inventory core uses the actor only for attribution.
type UserContext struct {
	UserID string
	Name   string
	Roles  []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// ActorID returns the user id or SystemActor when the context is anonymous.
func ActorID(ctx context.Context) string {
	if uid := GetUserID(ctx); uid != "" {
		return uid
	}
	return SystemActor
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
