package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dolcelab/pasticceria-backend/config"
	"github.com/dolcelab/pasticceria-backend/internal/api"
	"github.com/dolcelab/pasticceria-backend/internal/service"
)

func newTestEngine(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		AnthropicAPIKey: "test-key",
		AnthropicAPIURL: "http://localhost:0",
	}
	llmService, err := service.NewLLMService(cfg, nil)
	require.NoError(t, err)

	imageService := service.NewImageService(cfg, nil)
	recipeService := service.NewRecipeService(db, imageService)

	return SetupRouter(
		api.NewRecipeHandler(recipeService, llmService),
		api.NewLLMHandler(llmService),
		api.NewImageHandler(imageService, recipeService),
		nil,
	)
}

func TestHealthEndpoint(t *testing.T) {
	engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/recipes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
