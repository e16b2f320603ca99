package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dolcelab/pasticceria-backend/internal/model"
	"github.com/dolcelab/pasticceria-backend/internal/service"
)

// RecipeHandler handles recipe CRUD and the recompute workflows
type RecipeHandler struct {
	recipes    *service.RecipeService
	llmService *service.LLMService
}

// NewRecipeHandler creates a new RecipeHandler instance. The LLM service
// is optional and only used to resolve modification drafts.
func NewRecipeHandler(recipes *service.RecipeService, llmService *service.LLMService) *RecipeHandler {
	return &RecipeHandler{
		recipes:    recipes,
		llmService: llmService,
	}
}

// RegisterRoutes registers the recipe routes
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.GET("/:id", h.GetRecipe)
		recipes.POST("", h.CreateRecipe)
		recipes.PUT("/:id", h.UpdateRecipe)
		recipes.DELETE("/:id", h.DeleteRecipe)
		recipes.POST("/upload", h.UploadRecipes)
		recipes.POST("/:id/scale", h.ScaleRecipe)
		recipes.POST("/:id/accept-modification", h.AcceptModification)
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.recipes.List(c.Request.Context(), c.Query("categoria"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel recuperare le ricette"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id ricetta non valido"})
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ricetta non trovata"})
		return
	}

	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	var recipe model.Recipe
	if err := c.ShouldBindJSON(&recipe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := service.ValidateRecipe(&recipe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.recipes.Create(c.Request.Context(), &recipe); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel salvare la ricetta"})
		return
	}

	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id ricetta non valido"})
		return
	}

	var recipe model.Recipe
	if err := c.ShouldBindJSON(&recipe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := service.ValidateRecipe(&recipe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.recipes.Update(c.Request.Context(), id, &recipe)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nell'aggiornare la ricetta"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id ricetta non valido"})
		return
	}

	if err := h.recipes.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nell'eliminare la ricetta"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Ricetta eliminata", "id": id.String()})
}

// UploadRecipes imports a single recipe object or an array of them
func (h *RecipeHandler) UploadRecipes(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Corpo della richiesta obbligatorio"})
		return
	}

	result, err := h.recipes.ImportRecipes(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ScaleRecipe returns the recipe's ingredient list scaled by a factor
// expressed as a percentage (100 = unchanged)
func (h *RecipeHandler) ScaleRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id ricetta non valido"})
		return
	}

	var req struct {
		Scale float64 `json:"scale"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ricetta non trovata"})
		return
	}

	scaled, err := service.ScaleIngredients(recipe.Ingredients, req.Scale)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ingredienti": scaled})
}

// AcceptModification saves a modified ingredient list as a NEW recipe.
// The candidate list comes either inline or from a stored draft.
func (h *RecipeHandler) AcceptModification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id ricetta non valido"})
		return
	}

	var req struct {
		Name        string               `json:"nome"`
		Ingredients model.IngredientList `json:"ingredienti"`
		DraftID     string               `json:"draftId"`
		Note        string               `json:"nota"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ingredients := req.Ingredients
	note := req.Note
	if len(ingredients) == 0 && req.DraftID != "" && h.llmService != nil {
		draft, err := h.llmService.GetDraft(c.Request.Context(), req.DraftID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bozza di modifica non trovata"})
			return
		}
		ingredients = draft.Ingredients
		if note == "" {
			note = draft.Note
		}
	}

	if len(ingredients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lista ingredienti modificati obbligatoria"})
		return
	}

	recipe, err := h.recipes.AcceptModification(c.Request.Context(), id, req.Name, ingredients, note)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ricetta non trovata"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel salvare la ricetta"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}
