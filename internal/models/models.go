// package models defines the data model for the drone monitoring dashboard
package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// CacheEntry is one key in the persisted local cache.
type CacheEntry struct {
	id        string
	key       string
	value     []byte
	createdAt time.Time
	updatedAt time.Time
}

// NewCacheEntry creates an unsaved entry stamped with the current time.
func NewCacheEntry(key string, value []byte) *CacheEntry {
	now := time.Now().UTC()
	return &CacheEntry{key: key, value: value, createdAt: now, updatedAt: now}
}

func (c *CacheEntry) ID() string           { return c.id }
func (c *CacheEntry) Key() string          { return c.key }
func (c *CacheEntry) Value() []byte        { return c.value }
func (c *CacheEntry) CreatedAt() time.Time { return c.createdAt }
func (c *CacheEntry) UpdatedAt() time.Time { return c.updatedAt }

func (c *CacheEntry) SetID(id string)          { c.id = id }
func (c *CacheEntry) SetValue(v []byte)        { c.value = v }
func (c *CacheEntry) SetCreatedAt(t time.Time) { c.createdAt = t }
func (c *CacheEntry) SetUpdatedAt(t time.Time) { c.updatedAt = t }

// Validate requires a key and a value.
func (c *CacheEntry) Validate() error {
	if strings.TrimSpace(c.key) == "" {
		return fmt.Errorf("cache entry key is required")
	}
	if c.value == nil {
		return fmt.Errorf("cache entry %q has no value", c.key)
	}
	return nil
}

// ReportExport records one exported detections report.
type ReportExport struct {
	id          string
	ownerID     string
	format      string
	path        string
	recordCount int
	createdAt   time.Time
}

// NewReportExport creates an unsaved export record.
func NewReportExport(ownerID, format, path string, recordCount int) *ReportExport {
	return &ReportExport{
		ownerID:     ownerID,
		format:      format,
		path:        path,
		recordCount: recordCount,
		createdAt:   time.Now().UTC(),
	}
}

func (r *ReportExport) ID() string           { return r.id }
func (r *ReportExport) OwnerID() string      { return r.ownerID }
func (r *ReportExport) Format() string       { return r.format }
func (r *ReportExport) Path() string         { return r.path }
func (r *ReportExport) RecordCount() int     { return r.recordCount }
func (r *ReportExport) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt equals CreatedAt; exports are written once.
func (r *ReportExport) UpdatedAt() time.Time { return r.createdAt }

func (r *ReportExport) SetID(id string)          { r.id = id }
func (r *ReportExport) SetPath(p string)         { r.path = p }
func (r *ReportExport) SetRecordCount(n int)     { r.recordCount = n }
func (r *ReportExport) SetCreatedAt(t time.Time) { r.createdAt = t }

// Validate requires an owner, a format and a path.
func (r *ReportExport) Validate() error {
	switch {
	case r.ownerID == "":
		return fmt.Errorf("report export owner is required")
	case r.format == "":
		return fmt.Errorf("report export format is required")
	case r.path == "":
		return fmt.Errorf("report export path is required")
	case r.recordCount < 0:
		return fmt.Errorf("report export record count cannot be negative")
	}
	return nil
}
