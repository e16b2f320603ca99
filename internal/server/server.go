package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dolcelab/pasticceria-backend/config"
	"github.com/dolcelab/pasticceria-backend/internal/api"
	"github.com/dolcelab/pasticceria-backend/internal/database"
	"github.com/dolcelab/pasticceria-backend/internal/router"
	"github.com/dolcelab/pasticceria-backend/internal/service"
)

// Server represents the HTTP server. Clients for the database, Redis and
// S3 are constructed once at process start and passed in, so tests can
// substitute fakes.
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// New creates a new server instance from already-constructed dependencies
func New(cfg *config.Config, db *gorm.DB, healthDB *database.DB, redisClient *redis.Client, s3Config *config.S3Config) (*Server, error) {
	llmService, err := service.NewLLMService(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	imageService := service.NewImageService(cfg, s3Config)
	recipeService := service.NewRecipeService(db, imageService)

	recipeHandler := api.NewRecipeHandler(recipeService, llmService)
	llmHandler := api.NewLLMHandler(llmService)
	imageHandler := api.NewImageHandler(imageService, recipeService)

	engine := router.SetupRouter(recipeHandler, llmHandler, imageHandler, healthDB)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:    cfg.ServerHost + ":" + cfg.ServerPort,
			Handler: engine,
		},
	}, nil
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
