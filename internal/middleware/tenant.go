// Package middleware holds the gin gateway middleware the server wires in
// front of every route. Grounded on the teacher's internal/middleware/auth.go
// (RequireAuth()'s header-extraction-then-context-injection shape), adapted
// from bearer-token session auth to this module's header-asserted tenant
// identity (spec.md's Non-goals explicitly exclude building an auth/session
// layer; a gateway in front of this service is expected to populate these
// headers after its own authentication).
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/tenant"
)

const (
	headerUserID  = "X-User-Id"
	headerSpaceID = "X-Space-Id"
)

type TenantMiddleware struct {
	log    *logger.Logger
	users  repos.UserRepo
	spaces repos.SpaceRepo
}

func NewTenantMiddleware(log *logger.Logger, users repos.UserRepo, spaces repos.SpaceRepo) *TenantMiddleware {
	return &TenantMiddleware{log: log.With("middleware", "TenantMiddleware"), users: users, spaces: spaces}
}

// RequireTenant rejects any request missing a valid X-User-Id header,
// upserts bare User/Space rows so MetaStore's foreign keys are satisfied,
// and injects a tenant.Tenant into the request context. X-Space-Id is
// optional; its absence scopes the request to all of the user's spaces.
func (m *TenantMiddleware) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader(headerUserID))
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + headerUserID})
			return
		}
		spaceID := uuid.Nil
		if raw := c.GetHeader(headerSpaceID); raw != "" {
			spaceID, err = uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + headerSpaceID})
				return
			}
		}
		ctx := c.Request.Context()
		if err := m.users.EnsureExists(ctx, nil, userID); err != nil {
			m.log.Error("failed to ensure tenant user row", "error", err, "user_id", userID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant provisioning failed"})
			return
		}
		if spaceID != uuid.Nil {
			if err := m.spaces.EnsureExists(ctx, nil, spaceID, userID); err != nil {
				m.log.Error("failed to ensure tenant space row", "error", err, "space_id", spaceID)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant provisioning failed"})
				return
			}
		}
		t := tenant.Tenant{UserID: userID, SpaceID: spaceID}
		ctx = tenant.WithContext(ctx, t)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
