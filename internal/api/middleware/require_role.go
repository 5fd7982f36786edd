package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/legalmatch/internal/utils"
)

func RequireRole(allowed ...string) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			allow[a] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetString(CtxRole)))
		if _, ok := allow[role]; role == "" || !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{Code: utils.CodeForbidden, Message: "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAdmin guards operator endpoints such as triggering an index pass.
func RequireAdmin() gin.HandlerFunc { return RequireRole("admin") }
