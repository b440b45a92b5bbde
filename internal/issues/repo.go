package issues

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
)

// Repository persists support tickets.
type Repository interface {
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	FindByTicketID(ctx context.Context, ticketID string) (*models.Issue, error)
	FindOpenByMember(ctx context.Context, memberID uuid.UUID, issueType enums.IssueType) (*models.Issue, error)
	FindOpenByDrop(ctx context.Context, dropID uuid.UUID) ([]models.Issue, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.IssueStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an issues repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if err := r.db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *repository) FindByTicketID(ctx context.Context, ticketID string) (*models.Issue, error) {
	var issue models.Issue
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&issue).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &issue, nil
}

func (r *repository) FindOpenByMember(ctx context.Context, memberID uuid.UUID, issueType enums.IssueType) (*models.Issue, error) {
	var issue models.Issue
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND type = ? AND status IN ?", memberID, issueType, openStatuses()).
		Order("created_at DESC").
		First(&issue).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &issue, nil
}

func (r *repository) FindOpenByDrop(ctx context.Context, dropID uuid.UUID) ([]models.Issue, error) {
	var open []models.Issue
	err := r.db.WithContext(ctx).
		Where("drop_id = ? AND status IN ?", dropID, openStatuses()).
		Order("created_at ASC").
		Find(&open).Error
	if err != nil {
		return nil, err
	}
	return open, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.IssueStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "issue not found")
	}
	return nil
}

func openStatuses() []enums.IssueStatus {
	return []enums.IssueStatus{enums.IssueStatusOpen, enums.IssueStatusInProgress, enums.IssueStatusAwaitingInfo}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "issue not found")
	}
	return err
}
