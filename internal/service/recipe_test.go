package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dolcelab/pasticceria-backend/internal/model"
)

func setupRecipeDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	createRecipes := `CREATE TABLE recipes (
           id TEXT PRIMARY KEY,
           created_at DATETIME,
           updated_at DATETIME,
           deleted_at DATETIME,
           nome TEXT NOT NULL,
           categoria TEXT,
           ingredienti TEXT NOT NULL DEFAULT '[]',
           procedimento TEXT,
           consigli TEXT,
           image_url TEXT
   );`
	if err := db.Exec(createRecipes).Error; err != nil {
		t.Fatalf("failed to create recipes table: %v", err)
	}
	return db
}

// stubImageSearcher fails lookups for queries carrying a marker prefix
type stubImageSearcher struct {
	url        string
	failPrefix string
}

func (s *stubImageSearcher) SearchImage(_ context.Context, query string) (string, error) {
	if s.failPrefix != "" && strings.HasPrefix(query, s.failPrefix) {
		return "", fmt.Errorf("image lookup failed for %q", query)
	}
	return s.url, nil
}

func newTestRecipeService(t *testing.T, images ImageSearcher) *RecipeService {
	svc := NewRecipeService(setupRecipeDB(t), images)
	svc.bulkPause = 0
	return svc
}

func TestScaleIngredients(t *testing.T) {
	t.Run("multiplies every quantity by scale over 100", func(t *testing.T) {
		pct := 62.5
		ingredients := model.IngredientList{
			{Name: "Farina", Quantity: 200, Unit: "g"},
			{Name: "Burro", Quantity: 125, Unit: "g", Percentage: &pct},
			{Name: "Latte", Quantity: 80, Unit: "ml"},
		}

		scaled, err := ScaleIngredients(ingredients, 50)
		require.NoError(t, err)

		assert.Equal(t, 100.0, scaled[0].Quantity)
		assert.Equal(t, 62.5, scaled[1].Quantity)
		assert.Equal(t, 40.0, scaled[2].Quantity)

		// names, units and percentages pass through untouched
		assert.Equal(t, "Farina", scaled[0].Name)
		assert.Equal(t, "g", scaled[0].Unit)
		require.NotNil(t, scaled[1].Percentage)
		assert.Equal(t, 62.5, *scaled[1].Percentage)

		// original list is never mutated
		assert.Equal(t, 200.0, ingredients[0].Quantity)
	})

	t.Run("accepts any positive factor", func(t *testing.T) {
		ingredients := model.IngredientList{{Name: "Farina", Quantity: 200, Unit: "g"}}

		scaled, err := ScaleIngredients(ingredients, 333)
		require.NoError(t, err)
		assert.Equal(t, 666.0, scaled[0].Quantity)
	})

	t.Run("rejects zero and negative factors", func(t *testing.T) {
		ingredients := model.IngredientList{{Name: "Farina", Quantity: 200, Unit: "g"}}

		_, err := ScaleIngredients(ingredients, 0)
		assert.Error(t, err)
		_, err = ScaleIngredients(ingredients, -50)
		assert.Error(t, err)
	})
}

func TestRecipeCRUD(t *testing.T) {
	svc := newTestRecipeService(t, &stubImageSearcher{url: "https://img.example/test.jpg"})
	ctx := context.Background()

	recipe := &model.Recipe{
		Name:        "Torta",
		Category:    "Torte",
		Ingredients: model.IngredientList{{Name: "Farina", Quantity: 200, Unit: "g"}},
		Procedure:   "Impastare e cuocere.",
	}

	t.Run("create fills a missing image via lookup", func(t *testing.T) {
		require.NoError(t, svc.Create(ctx, recipe))
		assert.NotEqual(t, recipe.ID.String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, "https://img.example/test.jpg", recipe.ImageURL)
	})

	t.Run("create rejects missing name or ingredients", func(t *testing.T) {
		assert.Error(t, svc.Create(ctx, &model.Recipe{Name: "Senza ingredienti"}))
		assert.Error(t, svc.Create(ctx, &model.Recipe{
			Ingredients: model.IngredientList{{Name: "Farina", Quantity: 1, Unit: "g"}},
		}))
	})

	t.Run("get returns the stored recipe", func(t *testing.T) {
		got, err := svc.Get(ctx, recipe.ID)
		require.NoError(t, err)
		assert.Equal(t, "Torta", got.Name)
		require.Len(t, got.Ingredients, 1)
		assert.Equal(t, 200.0, got.Ingredients[0].Quantity)
	})

	t.Run("update overwrites all fields", func(t *testing.T) {
		updated, err := svc.Update(ctx, recipe.ID, &model.Recipe{
			Name:        "Torta rivista",
			Category:    "Torte",
			Ingredients: model.IngredientList{{Name: "Farina", Quantity: 250, Unit: "g"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Torta rivista", updated.Name)
		assert.Equal(t, 250.0, updated.Ingredients[0].Quantity)
	})

	t.Run("delete removes the recipe", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, recipe.ID))
		_, err := svc.Get(ctx, recipe.ID)
		assert.Error(t, err)
	})
}

func TestAcceptModification(t *testing.T) {
	svc := newTestRecipeService(t, &stubImageSearcher{url: "https://img.example/nuova.jpg"})
	ctx := context.Background()

	original := &model.Recipe{
		Name:        "Torta",
		Category:    "Torte",
		Ingredients: model.IngredientList{{Name: "Farina", Quantity: 200, Unit: "g"}},
		Procedure:   "Impastare e cuocere.",
		Tips:        "Setacciare la farina.",
		ImageURL:    "https://img.example/originale.jpg",
	}
	require.NoError(t, svc.Create(ctx, original))

	substituted := model.IngredientList{{Name: "Farina di mandorle", Quantity: 200, Unit: "g"}}
	note := "Sostituito Farina con Farina di mandorle (1:1)"

	created, err := svc.AcceptModification(ctx, original.ID, "", substituted, note)
	require.NoError(t, err)

	t.Run("creates a new record with the default name", func(t *testing.T) {
		assert.Equal(t, "Torta - Modificata", created.Name)
		assert.NotEqual(t, original.ID, created.ID)
	})

	t.Run("inherits category and procedure, replaces ingredients wholesale", func(t *testing.T) {
		assert.Equal(t, "Torte", created.Category)
		assert.Equal(t, "Impastare e cuocere.", created.Procedure)
		require.Len(t, created.Ingredients, 1)
		assert.Equal(t, "Farina di mandorle", created.Ingredients[0].Name)
	})

	t.Run("appends the modification note to the tips", func(t *testing.T) {
		assert.Equal(t, "Setacciare la farina.\n\n**Modifica AI:** "+note, created.Tips)
	})

	t.Run("fresh image lookup on the new name", func(t *testing.T) {
		assert.Equal(t, "https://img.example/nuova.jpg", created.ImageURL)
	})

	t.Run("original record is unchanged", func(t *testing.T) {
		got, err := svc.Get(ctx, original.ID)
		require.NoError(t, err)
		assert.Equal(t, "Torta", got.Name)
		assert.Equal(t, "Farina", got.Ingredients[0].Name)
		assert.Equal(t, "Setacciare la farina.", got.Tips)
		assert.Equal(t, "https://img.example/originale.jpg", got.ImageURL)
	})

	t.Run("user-chosen name wins over the default", func(t *testing.T) {
		named, err := svc.AcceptModification(ctx, original.ID, "Torta alle mandorle", substituted, "")
		require.NoError(t, err)
		assert.Equal(t, "Torta alle mandorle", named.Name)
		// no note, tips inherited as-is
		assert.Equal(t, "Setacciare la farina.", named.Tips)
	})

	t.Run("image lookup failure falls back to the original image", func(t *testing.T) {
		failing := NewRecipeService(svc.db, &stubImageSearcher{failPrefix: "Torta"})
		failing.bulkPause = 0

		kept, err := failing.AcceptModification(ctx, original.ID, "", substituted, note)
		require.NoError(t, err)
		assert.Equal(t, "https://img.example/originale.jpg", kept.ImageURL)
	})

	t.Run("rejects an empty candidate list", func(t *testing.T) {
		_, err := svc.AcceptModification(ctx, original.ID, "", nil, "")
		assert.Error(t, err)
	})
}

func TestUpdateAllImages(t *testing.T) {
	t.Run("counts per-item failures without aborting", func(t *testing.T) {
		svc := newTestRecipeService(t, &stubImageSearcher{
			url:        "https://img.example/nuova.jpg",
			failPrefix: "Dolce fallito",
		})
		ctx := context.Background()

		for i := 1; i <= 8; i++ {
			require.NoError(t, svc.Create(ctx, &model.Recipe{
				Name:        fmt.Sprintf("Ricetta %d", i),
				Ingredients: model.IngredientList{{Name: "Farina", Quantity: 100, Unit: "g"}},
			}))
		}
		for _, name := range []string{"Dolce fallito A", "Dolce fallito B"} {
			require.NoError(t, svc.Create(ctx, &model.Recipe{
				Name:        name,
				Ingredients: model.IngredientList{{Name: "Farina", Quantity: 100, Unit: "g"}},
				ImageURL:    "https://img.example/vecchia.jpg",
			}))
		}

		result, err := svc.UpdateAllImages(ctx)
		require.NoError(t, err)

		assert.Equal(t, 10, result.Total)
		assert.Equal(t, 8, result.Updated)
		assert.Equal(t, 2, result.Failed)
	})

	t.Run("empty table reports nothing to update", func(t *testing.T) {
		svc := newTestRecipeService(t, &stubImageSearcher{url: "https://img.example/x.jpg"})

		result, err := svc.UpdateAllImages(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Total)
		assert.Equal(t, "Nessuna ricetta da aggiornare", result.Message)
	})
}

func TestNormalizeIngredients(t *testing.T) {
	t.Run("array form", func(t *testing.T) {
		list, err := NormalizeIngredients(json.RawMessage(`[{"nome":"Farina","quantita":200,"unita":"g"}]`))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Farina", list[0].Name)
		assert.Equal(t, 200.0, list[0].Quantity)
	})

	t.Run("JSON string form", func(t *testing.T) {
		list, err := NormalizeIngredients(json.RawMessage(`"[{\"nome\":\"Farina\",\"quantita\":200,\"unita\":\"g\"}]"`))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Farina", list[0].Name)
	})

	t.Run("keyed object form with defaults", func(t *testing.T) {
		list, err := NormalizeIngredients(json.RawMessage(`{"Farina":{"quantita":200,"unita":"g"},"Zucchero":{}}`))
		require.NoError(t, err)
		require.Len(t, list, 2)
		// keys are emitted in sorted order
		assert.Equal(t, "Farina", list[0].Name)
		assert.Equal(t, "Zucchero", list[1].Name)
		assert.Equal(t, 0.0, list[1].Quantity)
		assert.Equal(t, "g", list[1].Unit)
	})

	t.Run("rejects other shapes", func(t *testing.T) {
		for _, raw := range []string{`42`, `true`, `"non un array"`, ``} {
			_, err := NormalizeIngredients(json.RawMessage(raw))
			assert.Error(t, err, "input %q", raw)
		}
	})
}

func TestImportRecipes(t *testing.T) {
	svc := newTestRecipeService(t, &stubImageSearcher{url: "https://img.example/import.jpg"})
	ctx := context.Background()

	t.Run("single object", func(t *testing.T) {
		body := `{"nome":"Crostata","ingredienti":[{"nome":"Frolla","quantita":300,"unita":"g"}]}`
		result, err := svc.ImportRecipes(ctx, json.RawMessage(body))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 0, result.Failed)
	})

	t.Run("array with per-recipe failures", func(t *testing.T) {
		body := `[
			{"nome":"Biscotti","ingredienti":[{"nome":"Farina","quantita":250,"unita":"g"}]},
			{"nome":"Senza ingredienti","ingredienti":[]},
			{"nome":"Ingredienti rotti","ingredienti":42}
		]`
		result, err := svc.ImportRecipes(ctx, json.RawMessage(body))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 2, result.Failed)
	})

	t.Run("invalid body is a request-level error", func(t *testing.T) {
		_, err := svc.ImportRecipes(ctx, json.RawMessage(`non json`))
		assert.Error(t, err)
	})
}
