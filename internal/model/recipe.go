package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient is a name/quantity/unit triple. Percentage is the baker's
// percentage relative to the base ingredient (usually flour); it is
// informational only and never re-derived when quantities change.
type Ingredient struct {
	Name       string   `json:"nome"`
	Quantity   float64  `json:"quantita"`
	Unit       string   `json:"unita"`
	Percentage *float64 `json:"percentuale,omitempty"`
}

// IngredientList is a custom type for handling ingredient arrays in JSONB
type IngredientList []Ingredient

// Value implements the driver.Valuer interface
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *IngredientList) Scan(value interface{}) error {
	if value == nil {
		*l = IngredientList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Recipe is a persisted pastry formula. JSON field names match the wire
// format the frontend and the recipes table use (Italian keys).
type Recipe struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"column:nome;size:255;not null" json:"nome"`
	Category    string         `gorm:"column:categoria;size:100" json:"categoria,omitempty"`
	Ingredients IngredientList `gorm:"column:ingredienti;type:jsonb;not null;default:'[]'" json:"ingredienti"`
	Procedure   string         `gorm:"column:procedimento;type:text" json:"procedimento,omitempty"`
	Tips        string         `gorm:"column:consigli;type:text" json:"consigli,omitempty"`
	ImageURL    string         `gorm:"column:image_url;size:512" json:"image_url,omitempty"`
}

// TableName overrides the default gorm table name
func (Recipe) TableName() string {
	return "recipes"
}
