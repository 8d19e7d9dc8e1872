package common

import "context"

type ctxKey string

const (
	actorKey       ctxKey = "auth/actor"
	actorHolderKey ctxKey = "auth/actor-holder"
)

// Actor identifies who performed a request: an API key or a logged in user.
type Actor struct {
	Kind string // "api_key" or "user"
	ID   string
	Role string
}

// String renders the actor as kind:id.
func (a Actor) String() string {
	if a.ID == "" {
		return ""
	}
	return a.Kind + ":" + a.ID
}

type actorHolder struct {
	actor Actor
	set   bool
}

// WithActorSlot installs a slot that outer middleware (request logging,
// auditing) can read after an inner middleware authenticates the request.
func WithActorSlot(ctx context.Context) context.Context {
	if _, ok := ctx.Value(actorHolderKey).(*actorHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, actorHolderKey, &actorHolder{})
}

// WithActor stores the authenticated actor on the provided context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if holder, ok := ctx.Value(actorHolderKey).(*actorHolder); ok {
		holder.actor = actor
		holder.set = true
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom extracts the authenticated actor from the context if present.
func ActorFrom(ctx context.Context) (Actor, bool) {
	if actor, ok := ctx.Value(actorKey).(Actor); ok {
		return actor, true
	}
	if holder, ok := ctx.Value(actorHolderKey).(*actorHolder); ok && holder.set {
		return holder.actor, true
	}
	return Actor{}, false
}
