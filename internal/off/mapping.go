package off

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/nutriscan/backend/internal/models"
)

// mapProduct normalizes a raw OpenFoodFacts payload into a ProductRecord.
// It is pure and total: any well-formed payload maps without erroring, and
// missing fields degrade to absent values. requested is the barcode the
// lookup was issued for; it is the last-resort fallback for code and name.
func mapProduct(requested string, raw *rawProduct) *models.ProductRecord {
	code := strings.TrimSpace(raw.Code)
	if code == "" {
		code = requested
	}

	name := firstNonEmpty(
		raw.ProductName,
		raw.GenericName,
		firstBrandSegment(raw.Brands),
	)
	if name == "" {
		name = requested
	}

	record := &models.ProductRecord{
		ID:              code,
		Barcode:         code,
		Name:            name,
		Brand:           firstBrandSegment(raw.Brands),
		Quantity:        strings.TrimSpace(raw.Quantity),
		ServingSize:     strings.TrimSpace(raw.ServingSize),
		Nutriments:      mapNutriments(raw.Nutriments),
		EcoScore:        strings.TrimSpace(raw.EcoScoreGrade),
		Categories:      humanizeTags(raw.CategoriesTags),
		IngredientsText: strings.TrimSpace(raw.IngredientsText),
		Allergens:       humanizeTags(raw.AllergensTags),
		ImageURL:        parseImageURL(raw.ImageURL),
	}

	if grade := strings.TrimSpace(raw.NutriScoreGrade); grade != "" {
		record.NutriScore = &models.NutriScore{Grade: grade, Score: raw.NutriScoreScore}
	}
	if raw.NovaGroup != nil && *raw.NovaGroup >= 1 && *raw.NovaGroup <= 4 {
		group := *raw.NovaGroup
		record.NovaGroup = &group
	}

	return record
}

func mapNutriments(raw rawNutriments) models.NutrientProfile {
	// Values pass through untransformed; no unit conversion happens here.
	return models.NutrientProfile{
		EnergyKcal:    raw.EnergyKcal100g,
		Fat:           raw.Fat100g,
		SaturatedFat:  raw.SaturatedFat100g,
		Carbohydrates: raw.Carbohydrates100g,
		Sugars:        raw.Sugars100g,
		Fiber:         raw.Fiber100g,
		Protein:       raw.Proteins100g,
		Salt:          raw.Salt100g,
	}
}

// firstNonEmpty returns the first candidate that is non-empty after trimming.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// firstBrandSegment extracts the first comma-segment of the raw brands
// string, e.g. "Coca-Cola Company, The Coca-Cola Co" -> "Coca-Cola Company".
func firstBrandSegment(brands string) string {
	segment, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(segment)
}

// humanizeTags reduces "prefix:raw-slug" tags to display strings, dropping
// tags without usable content and preserving order. An absent source list
// still yields an empty slice rather than nil.
func humanizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if display, ok := humanizeTag(tag); ok {
			out = append(out, display)
		}
	}
	return out
}

// humanizeTag turns "en:whole-milk" into "Whole milk". Tags without a
// language prefix (no colon) or without content after it are dropped.
func humanizeTag(tag string) (string, bool) {
	idx := strings.LastIndex(tag, ":")
	if idx < 0 {
		return "", false
	}
	slug := strings.TrimSpace(tag[idx+1:])
	if slug == "" {
		return "", false
	}
	words := strings.ReplaceAll(slug, "-", " ")
	runes := []rune(words)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes), true
}

// parseImageURL keeps the raw URL only when it parses as an absolute URL.
func parseImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.String()
}
