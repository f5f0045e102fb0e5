package http

import (
	"github.com/gin-gonic/gin"

	"campusrag/internal/bootstrap"
	"campusrag/internal/pkg/jwtutil"
	"campusrag/internal/transport/http/handler"
	"campusrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	checks := make(map[string]handler.HealthCheck)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}

	return newEngine(routes{
		jwtSecret: app.Config.Auth.JWTSecret,
		health:    handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks),
		chat:      handler.NewChatHandler(app.ChatService),
		documents: handler.NewDocumentHandler(app.DocumentService, app.Config.MaxUploadBytes()),
		stats:     handler.NewStatsHandler(app.StatsService),
	})
}

type routes struct {
	jwtSecret string
	health    *handler.HealthHandler
	chat      *handler.ChatHandler
	documents *handler.DocumentHandler
	stats     *handler.StatsHandler
}

func newEngine(r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.GET("/healthz", r.health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(r.jwtSecret))
	admin := middleware.RequireRole(jwtutil.RoleAdmin)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("", r.chat.Stream)
	chatGroup.POST("/ask", r.chat.Ask)
	chatGroup.GET("/history", r.chat.GetHistory)

	docGroup := v1.Group("/documents")
	docGroup.GET("", admin, r.documents.List)
	docGroup.POST("", admin, r.documents.Upload)
	docGroup.GET("/:id/chunks", admin, r.documents.Chunks)
	docGroup.GET("/:id/download", r.documents.Download)
	docGroup.DELETE("/:id", admin, r.documents.Delete)
	docGroup.POST("/:id/reprocess", admin, r.documents.Reprocess)

	v1.GET("/admin/stats", admin, r.stats.Dashboard)

	return router
}
