// Package tenant carries the already-authenticated caller identity through
// a request. The HTTP adapter's gateway middleware is the only place a
// Tenant is constructed; everything downstream (Retriever, Ingestor,
// DeepResearchAgent, MetaStore repos) takes it as an explicit value or reads
// it back out of ctx, never re-deriving it from a token.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

type Tenant struct {
	UserID  uuid.UUID
	SpaceID uuid.UUID // uuid.Nil means "no space scoping, all of the user's spaces"
}

func (t Tenant) Valid() bool {
	return t.UserID != uuid.Nil
}

type key struct{}

var tenantKey key

func WithContext(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(Tenant)
	return t, ok
}
