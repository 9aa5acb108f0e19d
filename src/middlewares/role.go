package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole gates a route group to the listed role tiers. It only
// controls who may reach an endpoint; queue fairness is enforced deeper,
// in the conflict resolver.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(ctx *gin.Context) {
		role := ctx.GetString("role")
		if !allowed[role] {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
	}
}
