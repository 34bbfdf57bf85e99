package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

// SelfParam names the route parameter matched by RequireRoleOrSelf.
const SelfParam = "uid"

// RequireRoles allows only callers holding one of the roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return rbac(false, roles...)
}

// RequireRoleOrSelf also admits callers whose ID equals the :uid parameter.
func RequireRoleOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return rbac(true, roles...)
}

func rbac(allowSelf bool, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param(SelfParam) == actor.UserID {
			c.Next()
			return
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
