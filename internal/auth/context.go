package auth

import (
	"context"

	"github.com/google/uuid"
)

type accountIDKey struct{}
type adminKey struct{}

func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, accountIDKey{}, c.AccountID)
	return context.WithValue(ctx, adminKey{}, c.Admin)
}

func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey{}).(uuid.UUID)
	return id, ok
}

func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminKey{}).(bool)
	return admin
}
