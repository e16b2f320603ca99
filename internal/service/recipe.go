package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dolcelab/pasticceria-backend/internal/model"
)

// ImageSearcher finds an image URL for a free-text query. The category
// resolver never fails; remote lookups can.
type ImageSearcher interface {
	SearchImage(ctx context.Context, query string) (string, error)
}

// RecipeService is a thin gateway over the recipes table plus the
// ingredient-recalculation workflows built on top of it
type RecipeService struct {
	db     *gorm.DB
	images ImageSearcher

	// pause between bulk image updates, overridable in tests
	bulkPause time.Duration
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, images ImageSearcher) *RecipeService {
	return &RecipeService{
		db:        db,
		images:    images,
		bulkPause: 500 * time.Millisecond,
	}
}

// ValidateRecipe enforces the persistence invariant: a name and at least
// one ingredient
func ValidateRecipe(recipe *model.Recipe) error {
	if strings.TrimSpace(recipe.Name) == "" || len(recipe.Ingredients) == 0 {
		return fmt.Errorf("nome e almeno un ingrediente sono obbligatori")
	}
	return nil
}

// List returns all recipes, optionally filtered by category
func (s *RecipeService) List(ctx context.Context, category string) ([]model.Recipe, error) {
	var recipes []model.Recipe
	query := s.db.WithContext(ctx)
	if category != "" {
		query = query.Where("categoria = ?", category)
	}
	if err := query.Order("created_at DESC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipes: %w", err)
	}
	return recipes, nil
}

// Get returns one recipe by id
func (s *RecipeService) Get(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Create inserts a new recipe. When no image is set, a best-effort lookup
// on name + category fills one in; lookup failure never blocks the insert.
func (s *RecipeService) Create(ctx context.Context, recipe *model.Recipe) error {
	if err := ValidateRecipe(recipe); err != nil {
		return err
	}

	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}

	if recipe.ImageURL == "" && s.images != nil {
		if imageURL, err := s.images.SearchImage(ctx, recipe.Name+" "+recipe.Category); err == nil {
			recipe.ImageURL = imageURL
		}
	}

	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

// Update overwrites all fields of an existing recipe
func (s *RecipeService) Update(ctx context.Context, id uuid.UUID, recipe *model.Recipe) (*model.Recipe, error) {
	if err := ValidateRecipe(recipe); err != nil {
		return nil, err
	}

	var existing model.Recipe
	if err := s.db.WithContext(ctx).First(&existing, "id = ?", id).Error; err != nil {
		return nil, err
	}

	existing.Name = recipe.Name
	existing.Category = recipe.Category
	existing.Ingredients = recipe.Ingredients
	existing.Procedure = recipe.Procedure
	existing.Tips = recipe.Tips
	existing.ImageURL = recipe.ImageURL

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}
	return &existing, nil
}

// Delete removes a recipe by id
func (s *RecipeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&model.Recipe{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return nil
}

// ScaleIngredients multiplies every quantity by scale/100. Any positive
// factor is accepted; the 25-400 step-25 range is a UI constraint only.
// Percentages are copied through untouched: they are relative to the base
// ingredient and stay valid under uniform scaling.
func ScaleIngredients(ingredients model.IngredientList, scale float64) (model.IngredientList, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("il fattore di scala deve essere positivo")
	}

	scaled := make(model.IngredientList, len(ingredients))
	for i, ing := range ingredients {
		scaled[i] = model.Ingredient{
			Name:     ing.Name,
			Quantity: ing.Quantity * scale / 100,
			Unit:     ing.Unit,
		}
		if ing.Percentage != nil {
			p := *ing.Percentage
			scaled[i].Percentage = &p
		}
	}
	return scaled, nil
}

// AcceptModification creates a NEW recipe from a modified ingredient
// list. The original record is never mutated. The new record inherits
// category and procedure, appends the modification note to the tips, and
// gets a fresh image lookup keyed on the new name plus category, falling
// back to the original image when the lookup fails.
func (s *RecipeService) AcceptModification(ctx context.Context, recipeID uuid.UUID, newName string, ingredients model.IngredientList, note string) (*model.Recipe, error) {
	original, err := s.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	if len(ingredients) == 0 {
		return nil, fmt.Errorf("lista ingredienti modificati obbligatoria")
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		name = original.Name + " - Modificata"
	}

	tips := original.Tips
	if note != "" {
		tips = strings.TrimSpace(tips + "\n\n**Modifica AI:** " + note)
	}

	imageURL := original.ImageURL
	if s.images != nil {
		if found, err := s.images.SearchImage(ctx, name+" "+original.Category); err == nil {
			imageURL = found
		}
	}

	newRecipe := &model.Recipe{
		ID:          uuid.New(),
		Name:        name,
		Category:    original.Category,
		Ingredients: ingredients,
		Procedure:   original.Procedure,
		Tips:        tips,
		ImageURL:    imageURL,
	}

	if err := s.db.WithContext(ctx).Create(newRecipe).Error; err != nil {
		return nil, fmt.Errorf("failed to save modified recipe: %w", err)
	}
	return newRecipe, nil
}

// BulkUpdateResult reports the outcome of an update-all-images run
type BulkUpdateResult struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// UpdateAllImages re-resolves the image of every recipe, strictly
// sequentially, pausing between iterations to avoid overloading the
// downstream image API. Per-item failures are counted, never aborting the
// run; there is no resume, so a restart reprocesses everything.
func (s *RecipeService) UpdateAllImages(ctx context.Context) (*BulkUpdateResult, error) {
	var recipes []model.Recipe
	if err := s.db.WithContext(ctx).Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipes: %w", err)
	}

	if len(recipes) == 0 {
		return &BulkUpdateResult{Message: "Nessuna ricetta da aggiornare"}, nil
	}

	log.Printf("[RecipeService] Updating images for %d recipes", len(recipes))

	result := &BulkUpdateResult{
		Message: "Aggiornamento completato",
		Total:   len(recipes),
	}

	for _, recipe := range recipes {
		imageURL, err := s.images.SearchImage(ctx, recipe.Name+" "+recipe.Category)
		if err != nil {
			log.Printf("[RecipeService] Image lookup failed for %q: %v", recipe.Name, err)
			result.Failed++
			time.Sleep(s.bulkPause)
			continue
		}

		err = s.db.WithContext(ctx).Model(&model.Recipe{}).
			Where("id = ?", recipe.ID).
			Update("image_url", imageURL).Error
		if err != nil {
			log.Printf("[RecipeService] Image update failed for %q: %v", recipe.Name, err)
			result.Failed++
		} else {
			result.Updated++
		}

		time.Sleep(s.bulkPause)
	}

	return result, nil
}

// uploadRecipe is the raw shape accepted by batch upload; ingredients are
// normalized separately because three input forms are in the wild
type uploadRecipe struct {
	Name        string          `json:"nome"`
	Category    string          `json:"categoria"`
	Ingredients json.RawMessage `json:"ingredienti"`
	Procedure   string          `json:"procedimento"`
	Tips        string          `json:"consigli"`
	ImageURL    string          `json:"image_url"`
}

// keyedIngredient is the value side of the keyed-object ingredient form
type keyedIngredient struct {
	Quantity   float64  `json:"quantita"`
	Unit       string   `json:"unita"`
	Percentage *float64 `json:"percentuale"`
}

// NormalizeIngredients parses one of the three accepted ingredient
// shapes into a canonical list: a JSON array of ingredients, a JSON
// string containing such an array, or an object keyed by ingredient name.
// One explicit case per shape; anything else is a parse error.
func NormalizeIngredients(raw json.RawMessage) (model.IngredientList, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("formato ingredienti non valido: campo mancante")
	}

	switch trimmed[0] {
	case '[':
		var list model.IngredientList
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("formato ingredienti non valido: %w", err)
		}
		return list, nil

	case '"':
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, fmt.Errorf("formato ingredienti non valido: %w", err)
		}
		var list model.IngredientList
		if err := json.Unmarshal([]byte(encoded), &list); err != nil {
			return nil, fmt.Errorf("formato ingredienti non valido: %w", err)
		}
		return list, nil

	case '{':
		var keyed map[string]keyedIngredient
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("formato ingredienti non valido: %w", err)
		}
		names := make([]string, 0, len(keyed))
		for name := range keyed {
			names = append(names, name)
		}
		sort.Strings(names)

		list := make(model.IngredientList, 0, len(keyed))
		for _, name := range names {
			entry := keyed[name]
			unit := entry.Unit
			if unit == "" {
				unit = "g"
			}
			list = append(list, model.Ingredient{
				Name:       name,
				Quantity:   entry.Quantity,
				Unit:       unit,
				Percentage: entry.Percentage,
			})
		}
		return list, nil

	default:
		return nil, fmt.Errorf("formato ingredienti non valido: atteso array, stringa JSON o oggetto")
	}
}

// ImportResult reports the outcome of a batch upload
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// ImportRecipes accepts a single recipe object or an array of them,
// normalizes ingredients, validates, resolves a missing image and
// inserts. Per-recipe failures are counted, the batch continues.
func (s *RecipeService) ImportRecipes(ctx context.Context, raw json.RawMessage) (*ImportResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("corpo della richiesta vuoto")
	}

	var uploads []uploadRecipe
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &uploads); err != nil {
			return nil, fmt.Errorf("JSON non valido: %w", err)
		}
	} else {
		var single uploadRecipe
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("JSON non valido: %w", err)
		}
		uploads = []uploadRecipe{single}
	}

	result := &ImportResult{}
	for _, up := range uploads {
		ingredients, err := NormalizeIngredients(up.Ingredients)
		if err != nil {
			log.Printf("[RecipeService] Skipping recipe %q: %v", up.Name, err)
			result.Failed++
			continue
		}

		recipe := &model.Recipe{
			Name:        up.Name,
			Category:    up.Category,
			Ingredients: ingredients,
			Procedure:   up.Procedure,
			Tips:        up.Tips,
			ImageURL:    up.ImageURL,
		}

		if err := s.Create(ctx, recipe); err != nil {
			log.Printf("[RecipeService] Skipping recipe %q: %v", up.Name, err)
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result, nil
}
