package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dolcelab/pasticceria-backend/internal/model"
	"github.com/dolcelab/pasticceria-backend/internal/service"
)

// LLMHandler handles the AI-assisted endpoints
type LLMHandler struct {
	llmService *service.LLMService
}

// NewLLMHandler creates a new LLMHandler instance
func NewLLMHandler(llmService *service.LLMService) *LLMHandler {
	return &LLMHandler{llmService: llmService}
}

// RegisterRoutes registers the AI and draft routes
func (h *LLMHandler) RegisterRoutes(router *gin.RouterGroup) {
	ai := router.Group("/ai")
	{
		ai.POST("/create-recipe", h.CreateRecipe)
		ai.POST("/balance-ingredients", h.BalanceIngredients)
		ai.POST("/substitute-ingredient", h.SubstituteIngredient)
		ai.POST("/suggest-recipes", h.SuggestRecipes)
		ai.POST("/nutrition", h.Nutrition)
	}

	drafts := router.Group("/llm/drafts")
	{
		drafts.GET("/:id", h.GetDraft)
		drafts.DELETE("/:id", h.DeleteDraft)
	}
}

// respondLLMError maps an orchestrator failure onto the error taxonomy:
// parse failures carry the raw model text for diagnosis, provider
// failures stay generic with the detail logged server-side.
func respondLLMError(c *gin.Context, err error, generic string) {
	var parseErr *service.ParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       generic,
			"rawResponse": parseErr.Raw,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
}

// CreateRecipe generates a complete recipe from a free-text description
func (h *LLMHandler) CreateRecipe(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "La descrizione è richiesta"})
		return
	}

	recipe, err := h.llmService.CreateRecipe(c.Request.Context(), req.Description)
	if err != nil {
		respondLLMError(c, err, "Errore nel generare la ricetta")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// BalanceIngredients returns advisory prose plus, when the model honors
// the tool contract, a complete replacement ingredient list. The
// structured payload is optional: prose-only replies still succeed.
func (h *LLMHandler) BalanceIngredients(c *gin.Context) {
	var req struct {
		Recipe struct {
			Name        string               `json:"nome"`
			Ingredients model.IngredientList `json:"ingredienti"`
		} `json:"recipe"`
		UserRequest string `json:"userRequest"`
	}
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Recipe.Name == "" || len(req.Recipe.Ingredients) == 0 || strings.TrimSpace(req.UserRequest) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ricetta e richiesta sono obbligatori"})
		return
	}

	suggestions, modified, err := h.llmService.BalanceIngredients(
		c.Request.Context(), req.Recipe.Name, req.Recipe.Ingredients, req.UserRequest)
	if err != nil {
		respondLLMError(c, err, "Errore nel bilanciare gli ingredienti")
		return
	}

	resp := gin.H{"suggestions": suggestions}
	if modified != nil {
		resp["modifiedIngredients"] = modified

		draft := &service.ModificationDraft{
			RecipeName:  req.Recipe.Name,
			Ingredients: modified,
		}
		if err := h.llmService.SaveDraft(c.Request.Context(), draft); err == nil {
			resp["draftId"] = draft.ID
		}
	}

	c.JSON(http.StatusOK, resp)
}

// SubstituteIngredient suggests alternatives for one ingredient
func (h *LLMHandler) SubstituteIngredient(c *gin.Context) {
	var req struct {
		Ingredient string `json:"ingredient"`
		Recipe     *struct {
			Name        string               `json:"nome"`
			Ingredients model.IngredientList `json:"ingredienti"`
		} `json:"recipe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ingredient) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ingrediente da sostituire è obbligatorio"})
		return
	}

	var recipeName string
	var ingredients model.IngredientList
	if req.Recipe != nil {
		recipeName = req.Recipe.Name
		ingredients = req.Recipe.Ingredients
	}

	suggestions, options, err := h.llmService.SubstituteIngredient(
		c.Request.Context(), req.Ingredient, recipeName, ingredients)
	if err != nil {
		respondLLMError(c, err, "Errore nel trovare sostituzioni")
		return
	}

	resp := gin.H{"suggestions": suggestions}
	if options != nil {
		resp["substitutionOptions"] = options
	}

	c.JSON(http.StatusOK, resp)
}

// SuggestRecipes proposes recipes for a free-text pantry inventory
func (h *LLMHandler) SuggestRecipes(c *gin.Context) {
	var req struct {
		Ingredients string `json:"ingredients"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ingredients) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gli ingredienti sono richiesti"})
		return
	}

	suggestions, err := h.llmService.SuggestRecipes(c.Request.Context(), req.Ingredients)
	if err != nil {
		respondLLMError(c, err, "Errore nel generare i suggerimenti")
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// Nutrition estimates nutrition values for an ingredient list
func (h *LLMHandler) Nutrition(c *gin.Context) {
	var req struct {
		Ingredients model.IngredientList `json:"ingredienti"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Ingredients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ingredienti richiesti"})
		return
	}

	nutrition, err := h.llmService.EstimateNutrition(c.Request.Context(), req.Ingredients)
	if err != nil {
		respondLLMError(c, err, "Errore nel calcolo nutrizionale")
		return
	}

	c.JSON(http.StatusOK, gin.H{"nutrition": nutrition})
}

// GetDraft retrieves a stored modification draft
func (h *LLMHandler) GetDraft(c *gin.Context) {
	draft, err := h.llmService.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bozza non trovata"})
		return
	}

	c.JSON(http.StatusOK, draft)
}

// DeleteDraft removes a stored modification draft
func (h *LLMHandler) DeleteDraft(c *gin.Context) {
	if err := h.llmService.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nell'eliminare la bozza"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bozza eliminata"})
}
