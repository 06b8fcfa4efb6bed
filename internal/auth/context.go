package auth

import "context"

type ctxKey string

const identityContextKey ctxKey = "savequest.auth.identity"

func withIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityContextKey)
	id, ok := v.(Identity)
	return id, ok
}

// CurrentUserID returns the authenticated user id, or empty when the
// request is anonymous.
func CurrentUserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
