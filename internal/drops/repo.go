package drops

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudsyhq/sudsy-backend/pkg/db"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
)

// Repository persists drops and their append-only scan log.
type Repository interface {
	Create(ctx context.Context, drop *models.Drop) (*models.Drop, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Drop, error)
	FindByTag(ctx context.Context, tag string) (*models.Drop, error)
	FindOpenByMember(ctx context.Context, memberID uuid.UUID) ([]models.Drop, error)

	AppendScan(ctx context.Context, event *models.ScanEvent) error
	ListScans(ctx context.Context, dropID uuid.UUID) ([]models.ScanEvent, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DropStatus, changedAt time.Time) error
	SetHasOpenIssue(ctx context.Context, id uuid.UUID, open bool) error
	MarkNotificationSent(ctx context.Context, id uuid.UUID, kind enums.NotificationKind) error

	ListOpenPipeline(ctx context.Context) ([]models.Drop, error)
	ListReadyForReminder(ctx context.Context, readyBefore time.Time) ([]models.Drop, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a drops repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, drop *models.Drop) (*models.Drop, error) {
	if err := r.db.WithContext(ctx).Create(drop).Error; err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "drop tag already in use")
		}
		return nil, err
	}
	return drop, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Drop, error) {
	var drop models.Drop
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&drop).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &drop, nil
}

func (r *repository) FindByTag(ctx context.Context, tag string) (*models.Drop, error) {
	var drop models.Drop
	err := r.db.WithContext(ctx).Where("tag = ?", tag).First(&drop).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &drop, nil
}

func (r *repository) FindOpenByMember(ctx context.Context, memberID uuid.UUID) ([]models.Drop, error) {
	var open []models.Drop
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status <> ?", memberID, enums.DropStatusCollected).
		Order("created_at DESC").
		Find(&open).Error
	if err != nil {
		return nil, err
	}
	return open, nil
}

func (r *repository) AppendScan(ctx context.Context, event *models.ScanEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListScans(ctx context.Context, dropID uuid.UUID) ([]models.ScanEvent, error) {
	var scans []models.ScanEvent
	err := r.db.WithContext(ctx).
		Where("drop_id = ?", dropID).
		Order("scanned_at ASC, created_at ASC").
		Find(&scans).Error
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DropStatus, changedAt time.Time) error {
	return r.updates(ctx, id, map[string]any{
		"status":            status,
		"status_changed_at": changedAt,
	})
}

func (r *repository) SetHasOpenIssue(ctx context.Context, id uuid.UUID, open bool) error {
	return r.updates(ctx, id, map[string]any{"has_open_issue": open})
}

func (r *repository) MarkNotificationSent(ctx context.Context, id uuid.UUID, kind enums.NotificationKind) error {
	var column string
	switch kind {
	case enums.NotificationPickupConfirm:
		column = "pickup_confirm_sent"
	case enums.NotificationDropReady:
		column = "ready_notification_sent"
	case enums.NotificationPickupReminder:
		column = "pickup_reminder_sent"
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "notification kind has no drop flag")
	}
	return r.updates(ctx, id, map[string]any{column: true})
}

func (r *repository) ListOpenPipeline(ctx context.Context) ([]models.Drop, error) {
	var open []models.Drop
	err := r.db.WithContext(ctx).
		Where("status <> ?", enums.DropStatusCollected).
		Order("status_changed_at ASC").
		Find(&open).Error
	if err != nil {
		return nil, err
	}
	return open, nil
}

func (r *repository) ListReadyForReminder(ctx context.Context, readyBefore time.Time) ([]models.Drop, error) {
	var due []models.Drop
	err := r.db.WithContext(ctx).
		Where("status = ? AND pickup_reminder_sent = ? AND status_changed_at <= ?",
			enums.DropStatusReady, false, readyBefore).
		Order("status_changed_at ASC").
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repository) updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Drop{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
	}
	return nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "drop not found")
	}
	return err
}
