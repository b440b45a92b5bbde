package issues

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// ActionResolved marks a ticket leaving the open pipeline.
const ActionResolved = "resolved"

// Service opens and resolves support tickets.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Issue, error)
	Resolve(ctx context.Context, ticketID string, operator string) error
}

// OpenInput describes a ticket to be opened.
type OpenInput struct {
	MemberID    uuid.UUID
	DropID      *uuid.UUID
	Type        enums.IssueType
	Description string
	Priority    enums.IssuePriority
	Attachments json.RawMessage
	Source      string

	// SkipDuplicateCheck opts out of the member-scoped open-ticket guard.
	// Automated SLA tickets dedupe through the drop flag instead.
	SkipDuplicateCheck bool
}

type service struct {
	repo     Repository
	recorder auditRecorder
	logger   *logger.Logger
	now      func() time.Time
}

// NewService builds the issues service.
func NewService(repo Repository, recorder auditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("issues repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		recorder: recorder,
		logger:   logg,
		now:      time.Now,
	}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Issue, error) {
	if input.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown issue type")
	}

	priority := input.Priority
	if priority == "" {
		priority = enums.IssuePriorityMedium
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown issue priority")
	}

	if !input.SkipDuplicateCheck {
		existing, err := s.repo.FindOpenByMember(ctx, input.MemberID, input.Type)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		if existing != nil {
			return existing, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("an open %s ticket already exists: %s", input.Type, existing.TicketID))
		}
	}

	issue := &models.Issue{
		TicketID:    s.newTicketID(),
		DropID:      input.DropID,
		MemberID:    input.MemberID,
		Type:        input.Type,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Status:      enums.IssueStatusOpen,
		Attachments: input.Attachments,
	}
	created, err := s.repo.Create(ctx, issue)
	if err != nil {
		return nil, err
	}

	source := input.Source
	if source == "" {
		source = audit.SourceAdmin
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntityIssue,
		EntityID:   created.TicketID,
		Action:     audit.ActionCreated,
		NewValue:   string(created.Type),
		Source:     source,
	}); err != nil {
		s.logger.Error(ctx, "issue audit append failed", err)
	}
	return created, nil
}

func (s *service) Resolve(ctx context.Context, ticketID string, operator string) error {
	issue, err := s.repo.FindByTicketID(ctx, ticketID)
	if err != nil {
		return err
	}
	if issue.Status == enums.IssueStatusResolved || issue.Status == enums.IssueStatusClosed {
		return pkgerrors.New(pkgerrors.CodeConflict, "ticket is already resolved")
	}

	if err := s.repo.UpdateStatus(ctx, issue.ID, enums.IssueStatusResolved); err != nil {
		return err
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntityIssue,
		EntityID:   issue.TicketID,
		Action:     ActionResolved,
		OldValue:   string(issue.Status),
		NewValue:   string(enums.IssueStatusResolved),
		Operator:   operator,
		Source:     audit.SourceAdmin,
	}); err != nil {
		s.logger.Error(ctx, "issue audit append failed", err)
	}
	return nil
}

// newTicketID yields a short member-facing code, e.g. T-20260314-9F3C2A.
func (s *service) newTicketID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		id := uuid.New()
		copy(buf, id[:])
	}
	return fmt.Sprintf("T-%s-%s", s.now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
