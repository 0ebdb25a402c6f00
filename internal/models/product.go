package models

import "strings"

// ProductRecord is the normalized result of a successful barcode lookup.
type ProductRecord struct {
	ID      string `json:"id"`      // canonical code reported by the API, else the queried barcode
	Barcode string `json:"barcode"` // same default as ID
	Name    string `json:"name"`    // never empty: falls back to brand, then barcode

	Brand       string `json:"brand,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	ServingSize string `json:"serving_size,omitempty"`

	Nutriments NutrientProfile `json:"nutriments"`
	NutriScore *NutriScore     `json:"nutri_score,omitempty"`
	EcoScore   string          `json:"eco_score,omitempty"`
	NovaGroup  *int            `json:"nova_group,omitempty"` // 1-4 when present

	Categories      []string `json:"categories"` // display-cased, order preserved
	IngredientsText string   `json:"ingredients_text,omitempty"`
	Allergens       []string `json:"allergens"` // display-cased, order preserved
	ImageURL        string   `json:"image_url,omitempty"`
}

// NutrientProfile holds per-100g values. Every field is independently
// optional; nil means the source did not report it.
type NutrientProfile struct {
	EnergyKcal    *float64 `json:"energy_kcal,omitempty"` // kcal
	Fat           *float64 `json:"fat,omitempty"`         // grams
	SaturatedFat  *float64 `json:"saturated_fat,omitempty"`
	Carbohydrates *float64 `json:"carbohydrates,omitempty"`
	Sugars        *float64 `json:"sugars,omitempty"`
	Fiber         *float64 `json:"fiber,omitempty"`
	Protein       *float64 `json:"protein,omitempty"`
	Salt          *float64 `json:"salt,omitempty"`
}

// NutriScore is present only when the source reported a usable grade.
type NutriScore struct {
	Grade string `json:"grade"` // single letter as received
	Score *int   `json:"score,omitempty"`
}

// DisplayGrade returns the grade the way it is rendered on-screen.
func (n NutriScore) DisplayGrade() string {
	return strings.ToUpper(n.Grade)
}
