package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupwarden.app/warden/internal/http/handler"
)

type RouterConfig struct {
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, admin *handler.AdminHandler, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(adminAuth(cfg.AdminAPIKey))
	{
		v1.POST("/cache/rehydrate", admin.RehydrateAll)
		v1.POST("/cache/rehydrate/:chat_id", admin.RehydrateGroup)
		v1.GET("/reputation/:user_id/:group_id", admin.GetReputation)
	}
}

// adminAuth rejects requests without the configured admin key. An empty
// configured key disables the check (local development).
func adminAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key != "" && c.GetHeader("X-Admin-Key") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
