package utils

import (
	"context"

	"hostel-booking/internal/data/entity"
)

type contextKey string

const actorKey contextKey = "actor"

// SetActorContext stores the authenticated caller.
func SetActorContext(ctx context.Context, actor entity.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func GetActorFromContext(ctx context.Context) (entity.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(entity.Actor)
	return actor, ok
}
