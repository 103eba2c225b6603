package core

import "context"

// SystemUser is recorded as the author of changes not made by a person.
const SystemUser = "system"

type userCtxKey struct{}

// ContextWithUser records the acting user identifier for audit fields.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserFromContext returns the acting user, or SystemUser when none is set.
func UserFromContext(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(userCtxKey{}).(string); ok && id != "" {
			return id
		}
	}
	return SystemUser
}
