package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func init() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protectedRouter(cfg JWTConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuth(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserID), "role": c.GetString(CtxRole)})
	})
	r.GET("/p", handlers...)
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret, Audience: "authenticated"}
	r := protectedRouter(cfg)
	exp := time.Now().Add(time.Hour).Unix()

	ok := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "aud": "authenticated", "exp": exp})
	w := do(r, http.MethodGet, "/p", ok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"user"}`, w.Body.String())

	admin := signToken(t, testSecret, jwt.MapClaims{
		"sub": "u2", "aud": "authenticated", "exp": exp,
		"app_metadata": map[string]any{"role": "admin"},
	})
	w = do(r, http.MethodGet, "/p", admin)
	assert.JSONEq(t, `{"user_id":"u2","role":"admin"}`, w.Body.String())

	cases := map[string]string{
		"missing":      "",
		"wrong secret": signToken(t, "another-secret-another-secret-another", jwt.MapClaims{"sub": "u1", "aud": "authenticated", "exp": exp}),
		"expired":      signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "aud": "authenticated", "exp": time.Now().Add(-time.Hour).Unix()}),
		"audience":     signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "aud": "anon", "exp": exp}),
		"no subject":   signToken(t, testSecret, jwt.MapClaims{"aud": "authenticated", "exp": exp}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/p", tok)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
		})
	}
}

func TestJWTAuth_MissingSecret(t *testing.T) {
	w := do(protectedRouter(JWTConfig{}), http.MethodGet, "/p", "x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r := protectedRouter(JWTConfig{Secret: testSecret}, RequireAdmin())
	exp := time.Now().Add(time.Hour).Unix()

	user := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": exp})
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/p", user).Code)

	admin := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": exp, "app_metadata": map[string]any{"role": "Admin"}})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/p", admin).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	g := r.Group("/functions/v1", CORS())
	g.POST("/search-lawyers", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	g.OPTIONS("/search-lawyers", func(c *gin.Context) {})

	w := do(r, http.MethodOptions, "/functions/v1/search-lawyers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, w.Body.String())

	w = do(r, http.MethodPost, "/functions/v1/search-lawyers", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/ok", entry.Data["route"])
	assert.Equal(t, "req-1", entry.Data["request_id"])

	w = do(r, http.MethodGet, "/boom", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
