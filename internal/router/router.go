package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dolcelab/pasticceria-backend/internal/api"
	"github.com/dolcelab/pasticceria-backend/internal/database"
	"github.com/dolcelab/pasticceria-backend/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(
	recipeHandler *api.RecipeHandler,
	llmHandler *api.LLMHandler,
	imageHandler *api.ImageHandler,
	healthDB *database.DB,
) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://frontend:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	// API v1 routes
	v1 := router.Group("/api/v1")

	v1.GET("/health", func(c *gin.Context) {
		if healthDB != nil {
			if err := healthDB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	recipeHandler.RegisterRoutes(v1)
	llmHandler.RegisterRoutes(v1)
	imageHandler.RegisterRoutes(v1)

	return router
}
