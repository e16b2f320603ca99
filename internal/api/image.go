package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dolcelab/pasticceria-backend/internal/service"
)

// ImageHandler handles image search, upload and the bulk refresh
type ImageHandler struct {
	imageService *service.ImageService
	recipes      *service.RecipeService
}

// NewImageHandler creates a new ImageHandler instance
func NewImageHandler(imageService *service.ImageService, recipes *service.RecipeService) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		recipes:      recipes,
	}
}

// RegisterRoutes registers the image and admin routes
func (h *ImageHandler) RegisterRoutes(router *gin.RouterGroup) {
	images := router.Group("/images")
	{
		images.POST("/search", h.SearchImage)
		images.POST("/upload", h.UploadImage)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/update-images", h.UpdateAllImages)
	}
}

// SearchImage maps a free-text query to a curated image URL. A default
// always exists, so the lookup itself never fails.
func (h *ImageHandler) SearchImage(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query di ricerca obbligatoria"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": h.imageService.ResolveImage(req.Query)})
}

// UploadImage stores a user-provided recipe image and returns its URL
func (h *ImageHandler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File immagine obbligatorio"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel leggere il file"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel leggere il file"})
		return
	}

	imageURL, err := h.imageService.UploadImage(
		c.Request.Context(), data, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel caricare l'immagine"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
}

// UpdateAllImages re-resolves every recipe's image sequentially and
// reports per-item failure counts
func (h *ImageHandler) UpdateAllImages(c *gin.Context) {
	result, err := h.recipes.UpdateAllImages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nell'aggiornamento delle immagini"})
		return
	}

	c.JSON(http.StatusOK, result)
}
