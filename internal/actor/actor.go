package actor

import "context"

// Role identifies which of the marketplace parties is performing an action.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"

	// RoleSystem is used by internal jobs (SLA sweeper), never by a caller.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleRider, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the authenticated party behind a request. Every action handler
// receives it explicitly; there is no ambient session state in the engine.
type Actor struct {
	ID   string
	Role Role
}

type ctxKey string

const actorKey ctxKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
