// ABOUTME: Actor context for tracking the logged-in identity through core operations
// ABOUTME: Provides WithActor/FromContext for propagating who is acting via context

package auth

import (
	"context"

	"github.com/2389/lendtrack/internal/store"
)

// Actor holds the authenticated identity performing an operation.
type Actor struct {
	IdentityID string     // id of the authenticated identity
	Role       store.Role // role at the time the session was resolved
	SessionID  string     // correlation id of the login session
}

// actorContextKey is the key type for storing Actor in context.Context.
type actorContextKey struct{}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext retrieves the Actor from the context, returning nil if not present.
func FromContext(ctx context.Context) *Actor {
	val := ctx.Value(actorContextKey{})
	if val == nil {
		return nil
	}
	actor, ok := val.(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// MustFromContext retrieves the Actor from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Actor {
	actor := FromContext(ctx)
	if actor == nil {
		panic("auth: Actor not found in context")
	}
	return actor
}
