package identity

import "context"

type userKey struct{}

// WithUser attaches the authenticated user to the context. The auth
// middleware calls this after session validation; downstream handlers can
// rely on the user id being verified.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
