package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// Issue is a support or SLA-breach ticket. Creation is deduplicated by the
// owning drop's has_open_issue guard (automated tickets) or a member-scoped
// open-ticket check (conversational tickets).
type Issue struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID    string              `gorm:"column:ticket_id;not null;unique"`
	DropID      *uuid.UUID          `gorm:"column:drop_id;type:uuid;index"`
	MemberID    uuid.UUID           `gorm:"column:member_id;type:uuid;not null;index"`
	Type        enums.IssueType     `gorm:"column:type;not null"`
	Description string              `gorm:"column:description;type:text"`
	Priority    enums.IssuePriority `gorm:"column:priority;not null;default:'medium'"`
	Status      enums.IssueStatus   `gorm:"column:status;not null;default:'open'"`
	Attachments json.RawMessage     `gorm:"column:attachments;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
