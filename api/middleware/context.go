package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxAccessID contextKey = "access_id"
)

func value[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, _ := ctx.Value(key).(T)
	return v
}

func withValue(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func UserIDFromContext(ctx context.Context) string { return value[string](ctx, ctxUserID) }
func RoleFromContext(ctx context.Context) enums.UserRole { return value[enums.UserRole](ctx, ctxRole) }

// AccessIDFromContext is the jti of the access token, which keys the refresh
// session.
func AccessIDFromContext(ctx context.Context) string { return value[string](ctx, ctxAccessID) }

// ActorFromContext is false unless both the user id and the role are usable.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.UserRole, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	role := RoleFromContext(ctx)
	if err != nil || !role.IsValid() {
		return uuid.Nil, "", false
	}
	return id, role, true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return withValue(ctx, ctxRole, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, ctxAccessID, accessID)
}
