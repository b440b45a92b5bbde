package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// Drop is one physical handoff cycle of a member's bag, tracked from intake
// until the member collects it again.
type Drop struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Tag             string           `gorm:"column:tag;not null;unique"`
	MemberID        uuid.UUID        `gorm:"column:member_id;type:uuid;not null;index"`
	Status          enums.DropStatus `gorm:"column:status;type:drop_status;not null;default:'dropped'"`
	StatusChangedAt time.Time        `gorm:"column:status_changed_at;not null"`
	HasOpenIssue    bool             `gorm:"column:has_open_issue;not null;default:false"`

	// One-shot notification markers. Write-once per lifecycle pass; callers
	// check them before dispatching and set them only after a successful send.
	PickupConfirmSent     bool `gorm:"column:pickup_confirm_sent;not null;default:false"`
	ReadyNotificationSent bool `gorm:"column:ready_notification_sent;not null;default:false"`
	PickupReminderSent    bool `gorm:"column:pickup_reminder_sent;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ScanEvent is one operator checkpoint scan. Rows are append-only; the drop's
// scan log is the ordered set of its rows and is never rewritten.
type ScanEvent struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DropID         uuid.UUID            `gorm:"column:drop_id;type:uuid;not null;index"`
	CheckpointType enums.CheckpointType `gorm:"column:checkpoint_type;not null"`
	OperatorID     string               `gorm:"column:operator_id;not null"`
	Notes          string               `gorm:"column:notes"`
	ScannedAt      time.Time            `gorm:"column:scanned_at;not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}
