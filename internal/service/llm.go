package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dolcelab/pasticceria-backend/config"
	"github.com/dolcelab/pasticceria-backend/internal/model"
)

const (
	anthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion = "2023-06-01"

	// Output-length budgets per intent, sized for the expected response
	maxTokensCreateRecipe = 3072
	maxTokensBalance      = 2048
	maxTokensSubstitute   = 1536
	maxTokensSuggest      = 2048
	maxTokensNutrition    = 1024
)

// RecipeDraft is a recipe as returned by the model, before persistence
type RecipeDraft struct {
	Name        string               `json:"nome"`
	Category    string               `json:"categoria"`
	Ingredients model.IngredientList `json:"ingredienti"`
	Procedure   string               `json:"procedimento"`
	Tips        string               `json:"consigli"`
}

// NutritionEstimate holds model-generated nutrition values. They are not
// computed from a nutrition database; nothing is enforced beyond typing.
type NutritionEstimate struct {
	TotalCalories      float64 `json:"calorieTotali"`
	CaloriesPerServing float64 `json:"caloriePerPorzione"`
	Servings           float64 `json:"porzioni"`
	Protein            float64 `json:"proteine"`
	Fat                float64 `json:"grassi"`
	Carbs              float64 `json:"carboidrati"`
}

// SubstitutionOption is one model-suggested alternative. Ratio is an
// opaque human-readable string (e.g. "1:1.5"), never parsed.
type SubstitutionOption struct {
	Alternative         string               `json:"alternative"`
	Ratio               string               `json:"ratio"`
	ModifiedIngredients model.IngredientList `json:"modified_ingredients"`
}

// ModificationDraft is a candidate ingredient list produced by a balance
// or substitution call, kept in Redis until the user accepts it
type ModificationDraft struct {
	ID          string               `json:"id"`
	RecipeName  string               `json:"recipe_name"`
	Ingredients model.IngredientList `json:"ingredienti"`
	Note        string               `json:"nota,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// LLMService handles interactions with the Anthropic Messages API
type LLMService struct {
	apiKey string
	apiURL string
	client *http.Client
	redis  *redis.Client
}

// NewLLMService creates a new LLMService instance. The Redis client is
// optional; without it modification drafts are disabled.
func NewLLMService(cfg *config.Config, redisClient *redis.Client) (*LLMService, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY or ANTHROPIC_API_KEY_FILE must be set")
	}

	return &LLMService{
		apiKey: cfg.AnthropicAPIKey,
		apiURL: cfg.AnthropicAPIURL,
		client: &http.Client{Timeout: 60 * time.Second},
		redis:  redisClient,
	}, nil
}

// message represents a message in the conversation
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// tool declares a structured output schema the model is instructed to
// invoke after producing prose
type tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// request represents a request to the Messages API
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Tools     []tool    `json:"tools,omitempty"`
}

// contentBlock is one block of the model's reply: either prose ("text")
// or a structured tool invocation ("tool_use")
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

// complete sends one Messages API call and splits the reply into prose
// and structured tool payloads keyed by tool name. The tool payload is an
// instruction to the model, not a guarantee: callers must handle absence.
func (s *LLMService) complete(ctx context.Context, system, user string, maxTokens int, tools []tool) (string, map[string]json.RawMessage, error) {
	reqBody := request{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []message{
			{Role: "user", Content: user},
		},
		Tools: tools,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[LLMService] API request failed with status %d: %s", resp.StatusCode, string(body))
		return "", nil, fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return "", nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", nil, fmt.Errorf("no content in API response")
	}

	var prose string
	toolInputs := make(map[string]json.RawMessage)
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			prose = block.Text
		case "tool_use":
			toolInputs[block.Name] = block.Input
		}
	}

	return prose, toolInputs, nil
}

const createRecipeSystemPrompt = `Sei un maestro pasticcere italiano esperto. Il tuo compito è creare ricette di pasticceria complete e dettagliate basate sulle richieste dell'utente.

Regole:
- Crea ricette bilanciate e funzionanti
- Usa percentuali rispetto alla farina (se presente) o all'ingrediente principale
- Fornisci quantità precise in grammi o millilitri
- Includi istruzioni dettagliate e consigli pratici
- Rispetta eventuali restrizioni alimentari (vegano, senza glutine, ecc.)
- Rispondi SEMPRE in formato JSON valido

Formato OBBLIGATORIO della risposta (JSON):
{
  "nome": "Nome della ricetta",
  "categoria": "Categoria (es: Biscotti, Torte, Lievitati, ecc.)",
  "ingredienti": [
    {
      "nome": "Nome ingrediente",
      "quantita": numero,
      "unita": "g/ml/pezzi",
      "percentuale": numero (opzionale, rispetto all'ingrediente base)
    }
  ],
  "procedimento": "Istruzioni dettagliate passo dopo passo...",
  "consigli": "Consigli pratici per la riuscita della ricetta..."
}`

// CreateRecipe generates a complete recipe draft from a free-text
// description. The model replies with JSON embedded in prose; a parse
// failure is returned as *ParseError carrying the raw text.
func (s *LLMService) CreateRecipe(ctx context.Context, description string) (*RecipeDraft, error) {
	user := fmt.Sprintf("Crea una ricetta di pasticceria basata su questa richiesta: %s", description)

	prose, _, err := s.complete(ctx, createRecipeSystemPrompt, user, maxTokensCreateRecipe, nil)
	if err != nil {
		return nil, err
	}

	var draft RecipeDraft
	if err := ExtractJSON(prose, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

const balanceSystemPrompt = `Sei un maestro pasticcere esperto in bilanciamento degli ingredienti e tecniche di pasticceria.

Il tuo compito è:
1. Analizzare la ricetta fornita
2. Fornire i range di quantità MIN-MAX per ogni ingrediente rispettando le regole di pasticceria
3. Suggerire modifiche specifiche per ottenere il risultato richiesto dall'utente
4. IMPORTANTE: Dopo aver fornito i suggerimenti testuali, DEVI SEMPRE chiamare il tool 'provide_modified_ingredients' con la lista completa degli ingredienti con le nuove quantità

Regole di bilanciamento in pasticceria:
- La farina è di solito l'ingrediente base (100%)
- Zucchero: 20-100% rispetto alla farina
- Grassi (burro/olio): 20-80% rispetto alla farina
- Uova: contribuiscono a struttura e umidità (calcola in base al peso)
- Liquidi: bilanciare con ingredienti secchi
- Lievito: 1-3% per lievitati
- Sale: 0.5-2%

Formato della risposta:
Prima fornisci una tabella markdown con i range:
| Ingrediente | Quantità Attuale | Min | Max | Note |
|-------------|------------------|-----|-----|------|
| ... | ... | ... | ... | ... |

Poi fornisci suggerimenti specifici per ottenere: [richiesta utente]
- Ingrediente X: modificare da Y a Z perché...
- ...

INFINE, chiama il tool provide_modified_ingredients con TUTTI gli ingredienti (anche quelli non modificati) usando le nuove quantità suggerite.`

func ingredientSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"nome":        map[string]interface{}{"type": "string", "description": "Nome dell'ingrediente"},
			"quantita":    map[string]interface{}{"type": "number", "description": "Quantità suggerita"},
			"unita":       map[string]interface{}{"type": "string", "description": "Unità di misura"},
			"percentuale": map[string]interface{}{"type": "number", "description": "Percentuale rispetto alla farina (opzionale)"},
		},
		"required": []string{"nome", "quantita", "unita"},
	}
}

// BalanceIngredients asks the model to rebalance a recipe toward the
// user's request. Returns advisory prose plus, when the model honors the
// tool contract, a full replacement ingredient list.
func (s *LLMService) BalanceIngredients(ctx context.Context, recipeName string, ingredients model.IngredientList, userRequest string) (string, model.IngredientList, error) {
	ingJSON, err := json.MarshalIndent(ingredients, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	user := fmt.Sprintf("Ricetta attuale:\nNome: %s\nIngredienti: %s\n\nRichiesta dell'utente: %s\n\nAnalizza il bilanciamento e suggerisci modifiche.",
		recipeName, string(ingJSON), userRequest)

	tools := []tool{{
		Name:        "provide_modified_ingredients",
		Description: "DEVI SEMPRE usare questo tool per fornire la lista degli ingredienti modificati in formato strutturato alla fine della tua risposta",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"modified_ingredients": map[string]interface{}{
					"type":        "array",
					"description": "Lista degli ingredienti con le quantità modificate",
					"items":       ingredientSchema(),
				},
			},
			"required": []string{"modified_ingredients"},
		},
	}}

	prose, toolInputs, err := s.complete(ctx, balanceSystemPrompt, user, maxTokensBalance, tools)
	if err != nil {
		return "", nil, err
	}

	var modified model.IngredientList
	if input, ok := toolInputs["provide_modified_ingredients"]; ok {
		var payload struct {
			ModifiedIngredients model.IngredientList `json:"modified_ingredients"`
		}
		if err := json.Unmarshal(input, &payload); err != nil {
			log.Printf("[LLMService] Failed to parse modified ingredients tool payload: %v", err)
		} else {
			modified = payload.ModifiedIngredients
		}
	}

	return prose, modified, nil
}

const substituteSystemPrompt = `Sei un esperto pasticcere con conoscenza approfondita delle sostituzioni degli ingredienti in pasticceria.

Il tuo compito è suggerire 3-5 alternative valide per l'ingrediente da sostituire, considerando:
- Funzione dell'ingrediente nella ricetta (struttura, umidità, dolcezza, ecc.)
- Impatto su sapore, texture e aspetto
- Eventuali modifiche necessarie alle quantità
- Restrizioni alimentari comuni (vegano, senza glutine, ecc.)

Formato della risposta (markdown):
## Sostituzioni per [ingrediente]

### 1. [Alternativa 1]
**Rapporto di sostituzione:** 1:1 (o specificare)
**Impatto:** Descrizione breve dell'impatto su sapore, texture, colore
**Note:** Eventuali accorgimenti o modifiche necessarie

### 2. [Alternativa 2]
...

(continua per 3-5 alternative)

IMPORTANTE: Dopo aver fornito i suggerimenti testuali, DEVI SEMPRE chiamare il tool 'provide_substitution_options' con tutte le alternative suggerite e le liste complete degli ingredienti per ogni sostituzione.`

// SubstituteIngredient suggests alternatives for one ingredient, with or
// without the context of a full recipe
func (s *LLMService) SubstituteIngredient(ctx context.Context, ingredient string, recipeName string, ingredients model.IngredientList) (string, []SubstitutionOption, error) {
	var user string
	if recipeName != "" {
		ingJSON, err := json.MarshalIndent(ingredients, "", "  ")
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal ingredients: %w", err)
		}
		user = fmt.Sprintf("Ricetta: %s\nIngredienti: %s\n\nVoglio sostituire: %s\n\nSuggeriscimi alternative adatte a questa ricetta.",
			recipeName, string(ingJSON), ingredient)
	} else {
		user = fmt.Sprintf("Voglio sostituire %s in una ricetta di pasticceria. Suggeriscimi alternative valide.", ingredient)
	}

	tools := []tool{{
		Name:        "provide_substitution_options",
		Description: "DEVI SEMPRE usare questo tool per fornire le opzioni di sostituzione in formato strutturato alla fine della tua risposta",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"substitutions": map[string]interface{}{
					"type":        "array",
					"description": "Lista delle sostituzioni possibili",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"alternative": map[string]interface{}{"type": "string", "description": "Nome dell'ingrediente alternativo"},
							"ratio":       map[string]interface{}{"type": "string", "description": "Rapporto di sostituzione (es: 1:1, 1:1.5)"},
							"modified_ingredients": map[string]interface{}{
								"type":        "array",
								"description": "Lista completa degli ingredienti con la sostituzione applicata",
								"items":       ingredientSchema(),
							},
						},
						"required": []string{"alternative", "ratio", "modified_ingredients"},
					},
				},
			},
			"required": []string{"substitutions"},
		},
	}}

	prose, toolInputs, err := s.complete(ctx, substituteSystemPrompt, user, maxTokensSubstitute, tools)
	if err != nil {
		return "", nil, err
	}

	var options []SubstitutionOption
	if input, ok := toolInputs["provide_substitution_options"]; ok {
		var payload struct {
			Substitutions []SubstitutionOption `json:"substitutions"`
		}
		if err := json.Unmarshal(input, &payload); err != nil {
			log.Printf("[LLMService] Failed to parse substitution tool payload: %v", err)
		} else {
			options = payload.Substitutions
		}
	}

	return prose, options, nil
}

const suggestSystemPrompt = `Sei un esperto pasticcere italiano. Il tuo compito è suggerire ricette di pasticceria basate sugli ingredienti forniti dall'utente.

Regole:
- Suggerisci 3-5 ricette creative e fattibili
- Usa principalmente gli ingredienti forniti, ma puoi aggiungere ingredienti base comuni (zucchero, sale, lievito, ecc.)
- Fornisci il nome della ricetta e una breve descrizione (2-3 righe)
- Sii creativo ma pratico
- Rispondi in italiano

Formato della risposta:
1. **Nome Ricetta** - Breve descrizione della ricetta e perché funziona con questi ingredienti.
2. **Nome Ricetta** - Breve descrizione...
(continua per 3-5 ricette)`

// SuggestRecipes proposes recipes for a free-text pantry inventory.
// Free-text only: there is no structured payload for this intent.
func (s *LLMService) SuggestRecipes(ctx context.Context, ingredients string) (string, error) {
	user := fmt.Sprintf("Ho questi ingredienti in dispensa: %s\n\nSuggeriscimi alcune ricette di pasticceria che posso preparare.", ingredients)

	prose, _, err := s.complete(ctx, suggestSystemPrompt, user, maxTokensSuggest, nil)
	return prose, err
}

const nutritionSystemPrompt = `Sei un nutrizionista esperto. Calcola i valori nutrizionali approssimativi per la ricetta fornita.

Considera i valori medi per 100g di ogni ingrediente e calcola:
- Calorie totali
- Proteine (g)
- Grassi (g)
- Carboidrati (g)
- Calorie per porzione (assumi 8-12 porzioni per ricetta tipica)

Rispondi SOLO in formato JSON valido:
{
  "calorieTotali": numero,
  "caloriePerPorzione": numero,
  "porzioni": numero,
  "proteine": numero,
  "grassi": numero,
  "carboidrati": numero
}`

// EstimateNutrition asks the model for an approximate nutrition breakdown
func (s *LLMService) EstimateNutrition(ctx context.Context, ingredients model.IngredientList) (*NutritionEstimate, error) {
	ingJSON, err := json.MarshalIndent(ingredients, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	user := fmt.Sprintf("Calcola i valori nutrizionali per questi ingredienti:\n%s", string(ingJSON))

	prose, _, err := s.complete(ctx, nutritionSystemPrompt, user, maxTokensNutrition, nil)
	if err != nil {
		return nil, err
	}

	var nutrition NutritionEstimate
	if err := ExtractJSON(prose, &nutrition); err != nil {
		return nil, err
	}
	return &nutrition, nil
}

// SaveDraft stores a modification draft in Redis with a 24h TTL
func (s *LLMService) SaveDraft(ctx context.Context, draft *ModificationDraft) error {
	if s.redis == nil {
		return fmt.Errorf("draft store not configured")
	}

	draft.ID = uuid.New().String()
	draft.CreatedAt = time.Now()

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	key := fmt.Sprintf("recipe:modifica:%s", draft.ID)
	if err := s.redis.Set(ctx, key, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save draft to Redis: %w", err)
	}

	return nil
}

// GetDraft retrieves a modification draft from Redis
func (s *LLMService) GetDraft(ctx context.Context, id string) (*ModificationDraft, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("draft store not configured")
	}

	key := fmt.Sprintf("recipe:modifica:%s", id)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from Redis: %w", err)
	}

	var draft ModificationDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}

	return &draft, nil
}

// DeleteDraft removes a modification draft from Redis
func (s *LLMService) DeleteDraft(ctx context.Context, id string) error {
	if s.redis == nil {
		return fmt.Errorf("draft store not configured")
	}

	key := fmt.Sprintf("recipe:modifica:%s", id)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from Redis: %w", err)
	}

	return nil
}
