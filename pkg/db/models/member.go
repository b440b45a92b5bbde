package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// Member is the end user. The phone number is the unique lookup key for
// inbound chat events; the conversation state plus the latest input fully
// determine how free text is interpreted.
type Member struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PhoneNumber string    `gorm:"column:phone_number;not null;unique"`
	Email       string    `gorm:"column:email"`
	FullName    string    `gorm:"column:full_name"`

	ConversationState enums.ConversationState `gorm:"column:conversation_state;not null;default:'active'"`

	// Pending-ticket scratch accumulated across the issue-reporting flow.
	// Cleared when the ticket is finalized or the flow is abandoned.
	PendingIssueType        string `gorm:"column:pending_issue_type"`
	PendingIssueDescription string `gorm:"column:pending_issue_description"`

	DropsRemaining int `gorm:"column:drops_remaining;not null;default:0"`

	SubscriptionStatus   enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status;not null;default:'active'"`
	SquareSubscriptionID string                   `gorm:"column:square_subscription_id;index"`

	// Dunning ladder state. PaymentFailedAt anchors the day-N arithmetic; the
	// reminder booleans are the ladder's idempotency markers.
	PaymentFailedAt  *time.Time `gorm:"column:payment_failed_at"`
	Day3ReminderSent bool       `gorm:"column:day3_reminder_sent;not null;default:false"`
	Day7ReminderSent bool       `gorm:"column:day7_reminder_sent;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
