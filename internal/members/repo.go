package members

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
)

// Repository provides member lookups and the narrow set of state mutations
// the lifecycle engine needs.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByPhone(ctx context.Context, phone string) (*models.Member, error)
	FindBySquareSubscriptionID(ctx context.Context, subscriptionID string) (*models.Member, error)

	SetConversationState(ctx context.Context, id uuid.UUID, state enums.ConversationState) error
	SetPendingIssue(ctx context.Context, id uuid.UUID, issueType, description string) error
	ClearPendingIssue(ctx context.Context, id uuid.UUID) error

	ConsumeDropAllowance(ctx context.Context, id uuid.UUID) error
	GrantDropAllowance(ctx context.Context, id uuid.UUID, drops int) error

	SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, failedAt time.Time) error
	ClearPaymentFailure(ctx context.Context, id uuid.UUID) error
	MarkDunningReminderSent(ctx context.Context, id uuid.UUID, day int) error
	ListPastDue(ctx context.Context) ([]models.Member, error)
}

// ErrNoAllowance is returned when a member has no drops left in the cycle.
var ErrNoAllowance = pkgerrors.New(pkgerrors.CodePrecondition, "no drops remaining in the current cycle")

type repository struct {
	db *gorm.DB
}

// NewRepository builds a members repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &member, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&member).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &member, nil
}

func (r *repository) FindBySquareSubscriptionID(ctx context.Context, subscriptionID string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("square_subscription_id = ?", subscriptionID).First(&member).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &member, nil
}

func (r *repository) SetConversationState(ctx context.Context, id uuid.UUID, state enums.ConversationState) error {
	return r.updates(ctx, id, map[string]any{"conversation_state": state})
}

func (r *repository) SetPendingIssue(ctx context.Context, id uuid.UUID, issueType, description string) error {
	return r.updates(ctx, id, map[string]any{
		"pending_issue_type":        issueType,
		"pending_issue_description": description,
	})
}

func (r *repository) ClearPendingIssue(ctx context.Context, id uuid.UUID) error {
	return r.updates(ctx, id, map[string]any{
		"pending_issue_type":        "",
		"pending_issue_description": "",
	})
}

// ConsumeDropAllowance decrements atomically; the row guard keeps concurrent
// drop creations from pushing the allowance below zero.
func (r *repository) ConsumeDropAllowance(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ? AND drops_remaining > 0", id).
		UpdateColumn("drops_remaining", gorm.Expr("drops_remaining - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoAllowance
	}
	return nil
}

func (r *repository) GrantDropAllowance(ctx context.Context, id uuid.UUID, drops int) error {
	return r.updates(ctx, id, map[string]any{"drops_remaining": drops})
}

func (r *repository) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus) error {
	return r.updates(ctx, id, map[string]any{"subscription_status": status})
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, failedAt time.Time) error {
	return r.updates(ctx, id, map[string]any{
		"subscription_status": enums.SubscriptionStatusPastDue,
		"payment_failed_at":   failedAt,
		"day3_reminder_sent":  false,
		"day7_reminder_sent":  false,
	})
}

func (r *repository) ClearPaymentFailure(ctx context.Context, id uuid.UUID) error {
	return r.updates(ctx, id, map[string]any{
		"subscription_status": enums.SubscriptionStatusActive,
		"payment_failed_at":   nil,
		"day3_reminder_sent":  false,
		"day7_reminder_sent":  false,
	})
}

func (r *repository) MarkDunningReminderSent(ctx context.Context, id uuid.UUID, day int) error {
	switch day {
	case 3:
		return r.updates(ctx, id, map[string]any{"day3_reminder_sent": true})
	case 7:
		return r.updates(ctx, id, map[string]any{"day7_reminder_sent": true})
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown dunning reminder day")
	}
}

func (r *repository) ListPastDue(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := r.db.WithContext(ctx).
		Where("subscription_status = ? AND payment_failed_at IS NOT NULL", enums.SubscriptionStatusPastDue).
		Order("payment_failed_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	return nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "member not found")
	}
	return err
}
