package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/legalmatch/internal/utils"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"error"`
}

type JWTConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Role         string         `json:"role"`         // usually "authenticated" / "anon"
	AppMetadata  map[string]any `json:"app_metadata"` // {"role":"admin"} for operators
	UserMetadata map[string]any `json:"user_metadata"`
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: utils.CodeUnauthorized, Message: msg})
}

// JWTAuth verifies a Supabase HS256 access token and stores the subject and
// app role on the context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "SUPABASE_JWT_SECRET is not set",
			})
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := &supabaseClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || tok == nil || !tok.Valid {
			unauthorized(c, "invalid token")
			return
		}

		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			unauthorized(c, "invalid token issuer")
			return
		}
		if cfg.Audience != "" {
			valid := false
			for _, aud := range claims.Audience {
				if aud == cfg.Audience {
					valid = true
					break
				}
			}
			if !valid {
				unauthorized(c, "invalid token audience")
				return
			}
		}

		userID := claims.Subject
		if userID == "" {
			unauthorized(c, "missing subject")
			return
		}

		appRole := "user"
		if v, ok := claims.AppMetadata["role"].(string); ok && v != "" {
			appRole = v
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxRole, appRole)
		c.Next()
	}
}
