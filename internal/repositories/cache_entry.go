package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
)

var _ models.Repository[*models.CacheEntry] = (*CacheEntryRepository)(nil)

// CacheEntryRepository implements [models.Repository] for [models.CacheEntry] persistence.
type CacheEntryRepository struct {
	db *sql.DB
}

// NewCacheEntryRepository creates a new [CacheEntryRepository] with the given database connection
func NewCacheEntryRepository(db *sql.DB) *CacheEntryRepository {
	return &CacheEntryRepository{db: db}
}

// Create inserts a new entry with a generated ID
func (r *CacheEntryRepository) Create(entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.SetID(shared.GenerateID())

	query := `
		INSERT INTO cache_entries (id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, entry.ID(), entry.Key(), string(entry.Value()), entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID
func (r *CacheEntryRepository) Get(id string) (*models.CacheEntry, error) {
	row := r.db.QueryRow(`SELECT id, key, value, created_at, updated_at FROM cache_entries WHERE id = ?`, id)
	entry, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("cache entry", id)
	}
	return entry, err
}

// GetByKey retrieves an entry by its key
func (r *CacheEntryRepository) GetByKey(key string) (*models.CacheEntry, error) {
	row := r.db.QueryRow(`SELECT id, key, value, created_at, updated_at FROM cache_entries WHERE key = ?`, key)
	entry, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("cache entry", key)
	}
	return entry, err
}

// Update replaces the value of an existing entry
func (r *CacheEntryRepository) Update(entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	entry.SetUpdatedAt(now)

	result, err := r.db.Exec(`UPDATE cache_entries SET value = ?, updated_at = ? WHERE id = ?`,
		string(entry.Value()), now, entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update cache entry: %w", err)
	}
	return expectOneRow(result, "cache entry", entry.ID())
}

// Upsert writes value under key, creating the entry when it does not exist
func (r *CacheEntryRepository) Upsert(key string, value []byte) error {
	entry := models.NewCacheEntry(key, value)
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO cache_entries (id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, shared.GenerateID(), key, string(value), entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry %q: %w", key, err)
	}
	return nil
}

// Delete removes an entry by ID
func (r *CacheEntryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM cache_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return expectOneRow(result, "cache entry", id)
}

// DeleteByKey removes the entry stored under key. A missing key is not an error.
func (r *CacheEntryRepository) DeleteByKey(key string) error {
	if _, err := r.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}

// List retrieves entries ordered by key. Supported criteria: "key_prefix".
func (r *CacheEntryRepository) List(criteria map[string]any) ([]*models.CacheEntry, error) {
	query := `SELECT id, key, value, created_at, updated_at FROM cache_entries WHERE 1 = 1`
	args := []any{}

	if prefix, ok := criteria["key_prefix"].(string); ok && prefix != "" {
		query += " AND key LIKE ? || '%'"
		args = append(args, prefix)
	}
	query += " ORDER BY key ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		entry, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *CacheEntryRepository) scan(s scanner) (*models.CacheEntry, error) {
	var (
		id, key, value       string
		createdAt, updatedAt time.Time
	)
	if err := s.Scan(&id, &key, &value, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}

	entry := models.NewCacheEntry(key, []byte(value))
	entry.SetID(id)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	return entry, nil
}
