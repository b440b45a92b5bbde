package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/pagination"
)

// Repository persists and reads audit log entries. There is deliberately no
// update or delete method: the trail is append-only.
type Repository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLogEntry, string, error)
}

// ListFilter narrows the audit listing. Empty fields match everything.
type ListFilter struct {
	EntityType string
	EntityID   string
	Action     string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLogEntry, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.AuditLogEntry{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.Timestamp, cursor.ID)
	}

	var entries []models.AuditLogEntry
	err = query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&entries).Error
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			Timestamp: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return entries, nextCursor, nil
}
