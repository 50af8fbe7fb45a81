package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
)

var _ models.Repository[*models.ReportExport] = (*ReportExportRepository)(nil)

// ReportExportRepository implements [models.Repository] for [models.ReportExport] persistence.
type ReportExportRepository struct {
	db *sql.DB
}

// NewReportExportRepository creates a new [ReportExportRepository] with the given database connection
func NewReportExportRepository(db *sql.DB) *ReportExportRepository {
	return &ReportExportRepository{db: db}
}

// Create records an export with a generated ID
func (r *ReportExportRepository) Create(export *models.ReportExport) error {
	if err := export.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	export.SetID(shared.GenerateID())

	query := `
		INSERT INTO report_exports (id, owner_id, format, path, record_count, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, export.ID(), export.OwnerID(), export.Format(), export.Path(), export.RecordCount(), export.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert report export: %w", err)
	}
	return nil
}

// Get retrieves an export by ID
func (r *ReportExportRepository) Get(id string) (*models.ReportExport, error) {
	row := r.db.QueryRow(`
		SELECT id, owner_id, format, path, record_count, created_at FROM report_exports WHERE id = ?
	`, id)

	export, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("report export", id)
	}
	return export, err
}

// Update rewrites the path and record count of an export
func (r *ReportExportRepository) Update(export *models.ReportExport) error {
	if err := export.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(`UPDATE report_exports SET path = ?, record_count = ? WHERE id = ?`,
		export.Path(), export.RecordCount(), export.ID())
	if err != nil {
		return fmt.Errorf("failed to update report export: %w", err)
	}
	return expectOneRow(result, "report export", export.ID())
}

// Delete removes an export record by ID. The file itself is left in place.
func (r *ReportExportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM report_exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report export: %w", err)
	}
	return expectOneRow(result, "report export", id)
}

// List retrieves exports newest first. Supported criteria: "owner_id", "format", "limit".
func (r *ReportExportRepository) List(criteria map[string]any) ([]*models.ReportExport, error) {
	query := `
		SELECT id, owner_id, format, path, record_count, created_at
		FROM report_exports
		WHERE 1 = 1
	`
	args := []any{}

	if owner, ok := criteria["owner_id"].(string); ok && owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}
	if format, ok := criteria["format"].(string); ok && format != "" {
		query += " AND format = ?"
		args = append(args, format)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report exports: %w", err)
	}
	defer rows.Close()

	var exports []*models.ReportExport
	for rows.Next() {
		export, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, export)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return exports, nil
}

func (r *ReportExportRepository) scan(s scanner) (*models.ReportExport, error) {
	var (
		id, owner, format, path string
		count                   int
		createdAt               time.Time
	)
	if err := s.Scan(&id, &owner, &format, &path, &count, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report export: %w", err)
	}

	export := models.NewReportExport(owner, format, path, count)
	export.SetID(id)
	export.SetCreatedAt(createdAt)
	return export, nil
}
