package drops

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// tagPattern accepts an optional letter prefix followed by 1 to 4 digits,
// matching the short codes written on physical bags (B007, 42, k1234).
var tagPattern = regexp.MustCompile(`^[A-Za-z]?\d{1,4}$`)

// ValidTag reports whether raw looks like a bag tag.
func ValidTag(raw string) bool {
	return tagPattern.MatchString(strings.TrimSpace(raw))
}

type memberStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ConsumeDropAllowance(ctx context.Context, id uuid.UUID) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) (*notify.Result, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service owns the drop lifecycle: creation, checkpoint application, and
// administrative correction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Drop, error)
	ApplyCheckpoint(ctx context.Context, input CheckpointInput) (*CheckpointResult, error)
	CorrectStatus(ctx context.Context, input CorrectionInput) (*CheckpointResult, error)
	Track(ctx context.Context, memberID uuid.UUID) ([]models.Drop, error)
}

// CreateInput describes a new drop intake.
type CreateInput struct {
	MemberID   uuid.UUID
	Tag        string
	OperatorID string
	Source     string
}

// CheckpointInput is one operator scan.
type CheckpointInput struct {
	Tag            string
	CheckpointType enums.CheckpointType
	OperatorID     string
	Notes          string
}

// CorrectionInput is an administrative status override. It bypasses the
// forward-only guard and always leaves an audit entry naming the operator.
type CorrectionInput struct {
	Tag        string
	NewStatus  enums.DropStatus
	OperatorID string
	Reason     string
}

// CheckpointResult reports the observed transition.
type CheckpointResult struct {
	PreviousStatus enums.DropStatus
	NewStatus      enums.DropStatus
	Timestamp      time.Time
}

type service struct {
	repo       Repository
	members    memberStore
	dispatcher dispatcher
	recorder   auditRecorder
	logger     *logger.Logger
	now        func() time.Time
}

// NewService builds the drop lifecycle service.
func NewService(repo Repository, members memberStore, d dispatcher, recorder auditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("drops repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("member store required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		members:    members,
		dispatcher: d,
		recorder:   recorder,
		logger:     logg,
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Drop, error) {
	tag := strings.TrimSpace(input.Tag)
	if !ValidTag(tag) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "that doesn't look like a valid tag")
	}
	if input.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}

	member, err := s.members.FindByID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByTag(ctx, tag); err == nil && existing != nil {
		if !existing.Status.IsTerminal() {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("tag %s is already in the pipeline", tag))
		}
	} else if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	// Consuming the allowance first keeps dropsRemaining from going negative
	// under concurrent creations; the row guard rejects the loser.
	if err := s.members.ConsumeDropAllowance(ctx, member.ID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	drop := &models.Drop{
		Tag:             tag,
		MemberID:        member.ID,
		Status:          enums.DropStatusDropped,
		StatusChangedAt: now,
	}
	created, err := s.repo.Create(ctx, drop)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendScan(ctx, &models.ScanEvent{
		DropID:         created.ID,
		CheckpointType: enums.CheckpointIntakeAtOrigin,
		OperatorID:     input.OperatorID,
		ScannedAt:      now,
	}); err != nil {
		s.logger.Error(ctx, "intake scan append failed", err)
	}

	source := input.Source
	if source == "" {
		source = audit.SourceCheckpoint
	}
	s.recordAudit(ctx, audit.Entry{
		EntityType: audit.EntityDrop,
		EntityID:   created.Tag,
		Action:     audit.ActionCreated,
		NewValue:   created.Status.String(),
		Operator:   input.OperatorID,
		Source:     source,
	})

	if !created.PickupConfirmSent {
		s.dispatchAndFlag(ctx, created, member, enums.NotificationPickupConfirm, map[string]any{
			"Tag": created.Tag,
		})
	}
	return created, nil
}

func (s *service) ApplyCheckpoint(ctx context.Context, input CheckpointInput) (*CheckpointResult, error) {
	if !input.CheckpointType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown checkpoint type")
	}
	target, ok := input.CheckpointType.TargetStatus()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkpoint type has no target status")
	}

	drop, err := s.repo.FindByTag(ctx, strings.TrimSpace(input.Tag))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	// The scan itself is operational history and is always recorded, even
	// when it does not move the status forward.
	if err := s.repo.AppendScan(ctx, &models.ScanEvent{
		DropID:         drop.ID,
		CheckpointType: input.CheckpointType,
		OperatorID:     input.OperatorID,
		Notes:          input.Notes,
		ScannedAt:      now,
	}); err != nil {
		return nil, err
	}

	result := &CheckpointResult{
		PreviousStatus: drop.Status,
		NewStatus:      drop.Status,
		Timestamp:      now,
	}

	// Forward-only: replays and out-of-order scans never regress status.
	if target.Index() <= drop.Status.Index() {
		return result, nil
	}

	if err := s.repo.UpdateStatus(ctx, drop.ID, target, now); err != nil {
		return nil, err
	}
	result.NewStatus = target

	s.recordAudit(ctx, audit.Entry{
		EntityType: audit.EntityDrop,
		EntityID:   drop.Tag,
		Action:     audit.ActionStatusChanged,
		OldValue:   drop.Status.String(),
		NewValue:   target.String(),
		Operator:   input.OperatorID,
		Source:     audit.SourceCheckpoint,
	})

	if target == enums.DropStatusReady && !drop.ReadyNotificationSent {
		member, err := s.members.FindByID(ctx, drop.MemberID)
		if err != nil {
			s.logger.Error(ctx, "ready notification member lookup failed", err)
			return result, nil
		}
		s.dispatchAndFlag(ctx, drop, member, enums.NotificationDropReady, map[string]any{
			"Tag": drop.Tag,
		})
	}
	return result, nil
}

func (s *service) CorrectStatus(ctx context.Context, input CorrectionInput) (*CheckpointResult, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown drop status")
	}
	if strings.TrimSpace(input.OperatorID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "operator id is required for corrections")
	}

	drop, err := s.repo.FindByTag(ctx, strings.TrimSpace(input.Tag))
	if err != nil {
		return nil, err
	}
	if drop.Status == input.NewStatus {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "drop is already in that status")
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, drop.ID, input.NewStatus, now); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Entry{
		EntityType: audit.EntityDrop,
		EntityID:   drop.Tag,
		Action:     audit.ActionStatusCorrected,
		OldValue:   fmt.Sprintf("%s (%s)", drop.Status, input.Reason),
		NewValue:   input.NewStatus.String(),
		Operator:   input.OperatorID,
		Source:     audit.SourceAdmin,
	})

	return &CheckpointResult{
		PreviousStatus: drop.Status,
		NewStatus:      input.NewStatus,
		Timestamp:      now,
	}, nil
}

func (s *service) Track(ctx context.Context, memberID uuid.UUID) ([]models.Drop, error) {
	return s.repo.FindOpenByMember(ctx, memberID)
}

// dispatchAndFlag sends one lifecycle notification and sets the drop's
// write-once marker only after the dispatcher reports success, so a failed
// delivery is retried by the next event or sweep that observes the flag.
func (s *service) dispatchAndFlag(ctx context.Context, drop *models.Drop, member *models.Member, kind enums.NotificationKind, data map[string]any) {
	_, err := s.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       kind,
		EntityType: audit.EntityDrop,
		EntityID:   drop.Tag,
		To: notify.Recipient{
			MemberID: member.ID.String(),
			Phone:    member.PhoneNumber,
			Email:    member.Email,
		},
		Data: data,
	})
	if err != nil {
		s.logger.Error(ctx, "lifecycle notification failed", err)
		return
	}
	if err := s.repo.MarkNotificationSent(ctx, drop.ID, kind); err != nil {
		s.logger.Error(ctx, "notification flag update failed", err)
	}
}

func (s *service) recordAudit(ctx context.Context, entry audit.Entry) {
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error(ctx, "audit append failed", err)
	}
}
