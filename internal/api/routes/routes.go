package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoockh/legalmatch/internal/api/handlers"
	"github.com/yoockh/legalmatch/internal/api/middleware"
)

type Deps struct {
	Search  *handlers.SearchHandler
	Index   *handlers.IndexHandler
	Profile *handlers.ProfileHandler
	WS      *handlers.WSHandler // optional
	JWT     middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.JWTAuth(d.JWT)
	admin := []gin.HandlerFunc{auth, middleware.RequireAdmin()}

	// Edge-function compatible endpoints
	fn := r.Group("/functions/v1")
	fn.Use(middleware.CORS())
	fn.OPTIONS("/search-lawyers", func(*gin.Context) {})
	fn.POST("/search-lawyers", d.Search.Search)
	fn.OPTIONS("/generate-lawyer-embeddings", func(*gin.Context) {})
	fn.POST("/generate-lawyer-embeddings", append(admin, d.Index.Generate)...)

	pub := r.Group("/")
	pub.Use(middleware.CORS())
	pub.OPTIONS("/search-lawyers", func(*gin.Context) {})
	pub.POST("/search-lawyers", d.Search.Search)

	r.GET("/lawyers", d.Profile.List)

	me := r.Group("/lawyers/me")
	me.Use(auth)
	me.GET("", d.Profile.Me)
	me.PUT("", d.Profile.Update)

	ops := r.Group("/admin")
	ops.Use(admin...)
	ops.GET("/index-runs", d.Index.Runs)
	ops.GET("/index-status", d.Index.Status)

	if d.WS != nil {
		r.GET("/ws/search", d.WS.SearchWS)
	}
}
