package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry is an immutable fact about one entity mutation. Entries are
// only ever inserted; there is no update or delete path anywhere in the
// codebase. The entity reference is by ID only, never a foreign key with
// cascade semantics.
type AuditLogEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EntityType string    `gorm:"column:entity_type;not null;index:idx_audit_entity"`
	EntityID   string    `gorm:"column:entity_id;not null;index:idx_audit_entity"`
	Action     string    `gorm:"column:action;not null"`
	OldValue   string    `gorm:"column:old_value"`
	NewValue   string    `gorm:"column:new_value"`
	Operator   string    `gorm:"column:operator"`
	Source     string    `gorm:"column:source;not null"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
