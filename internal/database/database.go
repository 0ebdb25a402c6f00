package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nutriscan/backend/internal/models"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB interface defines the methods our scan-history store should implement
type DB interface {
	SaveScan(ctx context.Context, rec *models.ScanRecord) error
	GetScan(ctx context.Context, id string) (*models.ScanRecord, error)
	RecentScans(ctx context.Context, limit int) ([]*models.ScanRecord, error)
	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db *sqlx.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sqlx.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// scanRow is the storage shape of a ScanRecord; created_at is kept as an
// RFC3339 string in sqlite.
type scanRow struct {
	ID              string `db:"id"`
	Barcode         string `db:"barcode"`
	Status          string `db:"status"`
	ProductName     string `db:"product_name"`
	Brand           string `db:"brand"`
	NutriScoreGrade string `db:"nutri_score_grade"`
	Error           string `db:"error"`
	CreatedAt       string `db:"created_at"`
}

func (r scanRow) record() *models.ScanRecord {
	rec := &models.ScanRecord{
		ID:              r.ID,
		Barcode:         r.Barcode,
		Status:          r.Status,
		ProductName:     r.ProductName,
		Brand:           r.Brand,
		NutriScoreGrade: r.NutriScoreGrade,
		Error:           r.Error,
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	return rec
}

// SaveScan persists the outcome of one completed scan cycle
func (s *SQLiteDB) SaveScan(ctx context.Context, rec *models.ScanRecord) error {
	query := `
		INSERT INTO scan_history (
			id, barcode, status, product_name, brand, nutri_score_grade, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			barcode = excluded.barcode,
			status = excluded.status,
			product_name = excluded.product_name,
			brand = excluded.brand,
			nutri_score_grade = excluded.nutri_score_grade,
			error = excluded.error
	`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Barcode, rec.Status,
		rec.ProductName, rec.Brand, rec.NutriScoreGrade, rec.Error,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetScan retrieves one scan record by id; nil when not found
func (s *SQLiteDB) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	var row scanRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, barcode, status, product_name, brand, nutri_score_grade, error, created_at
		FROM scan_history WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

// RecentScans retrieves the most recent scan records, newest first
func (s *SQLiteDB) RecentScans(ctx context.Context, limit int) ([]*models.ScanRecord, error) {
	var rows []scanRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, barcode, status, product_name, brand, nutri_score_grade, error, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*models.ScanRecord, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.record())
	}
	return results, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
