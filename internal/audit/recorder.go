package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/pagination"
)

// Entity types covered by the trail.
const (
	EntityDrop         = "drop"
	EntityMember       = "member"
	EntityIssue        = "issue"
	EntityNotification = "notification"
	EntitySubscription = "subscription"
)

// Actions recorded against entities.
const (
	ActionStatusChanged      = "status_changed"
	ActionStatusCorrected    = "status_corrected"
	ActionCreated            = "created"
	ActionNotificationSent   = "notification_sent"
	ActionNotificationFailed = "notification_failed"
	ActionPaymentFailed      = "payment_failed"
	ActionPaymentRecovered   = "payment_recovered"
	ActionSubscriptionPaused = "subscription_paused"
	ActionSubscriptionResume = "subscription_resumed"
)

// Sources identify which part of the system wrote an entry.
const (
	SourceCheckpoint   = "checkpoint"
	SourceSweep        = "sweep"
	SourceWebhook      = "webhook"
	SourceConversation = "conversation"
	SourceDispatcher   = "dispatcher"
	SourceAdmin        = "admin"
)

// Entry is one fact to be appended to the trail.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	OldValue   string
	NewValue   string
	Operator   string
	Source     string
}

// Recorder appends entries to the audit trail and serves reads. Recording is
// best-effort from the caller's perspective at dispatch sites but the recorder
// itself never swallows errors; callers decide whether a failed append aborts
// the surrounding operation.
type Recorder struct {
	repo   Repository
	logger *logger.Logger
	now    func() time.Time
}

// NewRecorder builds an audit recorder.
func NewRecorder(repo Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{
		repo:   repo,
		logger: logg,
		now:    time.Now,
	}, nil
}

// Record appends one entry. The recorded timestamp is assigned here so every
// writer shares a single clock.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.EntityType == "" || entry.EntityID == "" {
		return fmt.Errorf("audit entry requires entity type and id")
	}
	if entry.Action == "" {
		return fmt.Errorf("audit entry requires an action")
	}
	if entry.Source == "" {
		return fmt.Errorf("audit entry requires a source")
	}

	row := &models.AuditLogEntry{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		Operator:   entry.Operator,
		Source:     entry.Source,
		RecordedAt: r.now().UTC(),
	}
	if err := r.repo.Create(ctx, row); err != nil {
		r.logger.Error(ctx, "audit append failed", err)
		return err
	}
	return nil
}

// List returns entries newest-first with an opaque continuation cursor.
func (r *Recorder) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLogEntry, string, error) {
	return r.repo.List(ctx, filter, params)
}
