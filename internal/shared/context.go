package shared

import (
	"context"
	"strings"
)

// Actor identifies the user on whose behalf a request runs. It is asserted by the upstream
// authentication gateway; this service trusts it as given.
type Actor struct {
	ID          string
	Name        string
	Permissions []string
}

// HasPermission reports whether the actor holds perm (case-insensitive).
func (a Actor) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if strings.EqualFold(strings.TrimSpace(p), perm) {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok && actor.ID != ""
}
