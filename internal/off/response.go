package off

// productEnvelope is the top level of an OpenFoodFacts v2 lookup response.
// status == 1 means the product exists; anything else is "not found".
type productEnvelope struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Product *rawProduct `json:"product"`
}

// rawProduct carries the subset of OpenFoodFacts fields we normalize.
type rawProduct struct {
	Code            string        `json:"code"`
	ProductName     string        `json:"product_name"`
	GenericName     string        `json:"generic_name"`
	Brands          string        `json:"brands"` // comma-separated
	Quantity        string        `json:"quantity"`
	ServingSize     string        `json:"serving_size"`
	Nutriments      rawNutriments `json:"nutriments"`
	NutriScoreGrade string        `json:"nutriscore_grade"`
	NutriScoreScore *int          `json:"nutriscore_score"`
	EcoScoreGrade   string        `json:"ecoscore_grade"`
	NovaGroup       *int          `json:"nova_group"`
	CategoriesTags  []string      `json:"categories_tags"` // "en:whole-milk" style
	AllergensTags   []string      `json:"allergens_tags"`
	IngredientsText string        `json:"ingredients_text"`
	ImageURL        string        `json:"image_url"`
}

// rawNutriments are per-100g values; nil means the field was not reported.
type rawNutriments struct {
	EnergyKcal100g    *float64 `json:"energy-kcal_100g"`
	Fat100g           *float64 `json:"fat_100g"`
	SaturatedFat100g  *float64 `json:"saturated-fat_100g"`
	Carbohydrates100g *float64 `json:"carbohydrates_100g"`
	Sugars100g        *float64 `json:"sugars_100g"`
	Fiber100g         *float64 `json:"fiber_100g"`
	Proteins100g      *float64 `json:"proteins_100g"`
	Salt100g          *float64 `json:"salt_100g"`
}
