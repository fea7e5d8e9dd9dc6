package shared

import "context"

type sessionContextKey struct{}

type userContextKey struct{}

// CurrentUser is the authenticated account attached to a request.
type CurrentUser struct {
	ID       int64
	Username string
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (CurrentUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(CurrentUser)
	return user, ok && user.ID > 0
}
