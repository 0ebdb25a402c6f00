package models

import "time"

// ScanRecord is the persisted outcome of one completed scan cycle.
type ScanRecord struct {
	ID      string `json:"id" db:"id"`
	Barcode string `json:"barcode" db:"barcode"`
	Status  string `json:"status" db:"status"` // "found" or "error"

	// Denormalized snapshot of the product, empty on error.
	ProductName     string `json:"product_name,omitempty" db:"product_name"`
	Brand           string `json:"brand,omitempty" db:"brand"`
	NutriScoreGrade string `json:"nutri_score_grade,omitempty" db:"nutri_score_grade"`

	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
