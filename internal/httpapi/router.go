package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quailsoft/transq/internal/common"
	"github.com/quailsoft/transq/internal/config"
	"github.com/quailsoft/transq/internal/engine"
	"github.com/quailsoft/transq/internal/history"
	"github.com/quailsoft/transq/internal/httpapi/handlers"
	"github.com/quailsoft/transq/internal/httpapi/middleware"
	"github.com/quailsoft/transq/internal/prompt"
)

func NewRouter(cfg config.Config, eng *engine.Engine, repo *history.Repo, hub *engine.Hub, presets *prompt.Registry) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Throttle(50, 100))

	h := handlers.NewHandler(cfg, eng, repo, hub, presets)

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/auth/token", h.IssueToken)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/translations", h.SubmitTranslation)
	authGroup.DELETE("/translations/:request_id", h.CancelTranslation)
	authGroup.GET("/translations/:request_id", h.GetTranslation)
	authGroup.GET("/translations", h.ListTranslations)
	authGroup.GET("/events", h.StreamEvents)
	authGroup.GET("/stats", h.GetStats)
	authGroup.GET("/presets", h.ListPresets)

	return r
}
