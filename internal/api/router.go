package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/forgeline/porter/internal/api/handlers"
	"github.com/forgeline/porter/internal/api/middleware"
	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/repository"
)

// NewRouter builds the admin HTTP surface: a public health probe and the
// JWT-protected operator endpoints.
func NewRouter(cfg *config.Config, repos *repository.Repositories, sync handlers.SyncTrigger) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"guilds":    len(cfg.Guilds),
		})
	})

	adminHandler := handlers.NewAdminHandler(cfg, repos, sync)

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminJWTSecret))
	{
		admin.POST("/sync", adminHandler.TriggerSync)
		admin.GET("/members/:guildID", adminHandler.ListMembers)
	}

	return r
}
