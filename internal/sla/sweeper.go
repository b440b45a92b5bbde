package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type dropStore interface {
	ListOpenPipeline(ctx context.Context) ([]models.Drop, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Drop, error)
	SetHasOpenIssue(ctx context.Context, id uuid.UUID, open bool) error
}

type issueOpener interface {
	Open(ctx context.Context, input issues.OpenInput) (*models.Issue, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) (*notify.Result, error)
}

// OpsContact is where escalation alerts land.
type OpsContact struct {
	Phone string
	Email string
}

// Result summarizes one SLA sweep.
type Result struct {
	Scanned        int      `json:"scanned"`
	Stuck          int      `json:"stuck"`
	Forgotten      int      `json:"forgotten"`
	TicketsCreated int      `json:"tickets_created"`
	AlertsSent     int      `json:"alerts_sent"`
	Errors         []string `json:"errors,omitempty"`
}

// Sweeper walks every open drop, classifies its time in status, and opens one
// ticket per stuck item. The drop's has_open_issue flag is the dedup guard;
// no retry counter exists, so a failed alert simply re-qualifies on the next
// sweep.
type Sweeper struct {
	drops      dropStore
	issues     issueOpener
	dispatcher dispatcher
	ops        OpsContact
	logger     *logger.Logger
	now        func() time.Time
}

// NewSweeper builds the SLA sweep.
func NewSweeper(drops dropStore, opener issueOpener, d dispatcher, ops OpsContact, logg *logger.Logger) (*Sweeper, error) {
	if drops == nil {
		return nil, fmt.Errorf("drop store required")
	}
	if opener == nil {
		return nil, fmt.Errorf("issue opener required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Sweeper{
		drops:      drops,
		issues:     opener,
		dispatcher: d,
		ops:        ops,
		logger:     logg,
		now:        time.Now,
	}, nil
}

// Sweep evaluates the open pipeline. Per-item failures are collected into the
// result and never abort the batch; only a failed listing fails the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	open, err := s.drops.ListOpenPipeline(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &Result{Scanned: len(open)}

	for i := range open {
		drop := open[i]
		severity, breached := Classify(drop.Status, now.Sub(drop.StatusChangedAt))
		if !breached {
			continue
		}
		if severity == SeverityForgotten {
			result.Forgotten++
		} else {
			result.Stuck++
		}
		if drop.HasOpenIssue {
			continue
		}

		created, err := s.escalate(ctx, &drop, severity, now)
		if created {
			result.TicketsCreated++
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", drop.Tag, err))
			s.logger.Error(s.logger.WithDropTag(ctx, drop.Tag), "sla escalation failed", err)
			continue
		}
		if created {
			result.AlertsSent++
		}
	}
	return result, nil
}

func (s *Sweeper) escalate(ctx context.Context, drop *models.Drop, severity Severity, now time.Time) (bool, error) {
	// Re-check the guard right before writing; a concurrent sweep or a
	// conversational ticket may have claimed the drop since the listing.
	current, err := s.drops.FindByID(ctx, drop.ID)
	if err != nil {
		return false, err
	}
	if current.HasOpenIssue {
		return false, nil
	}

	inStatus := now.Sub(current.StatusChangedAt).Round(time.Hour)
	issue, err := s.issues.Open(ctx, issues.OpenInput{
		MemberID: current.MemberID,
		DropID:   &current.ID,
		Type:     severity.IssueType(),
		Description: fmt.Sprintf("drop %s has been %s for %s (%s)",
			current.Tag, current.Status, inStatus, severity),
		Priority:           severity.Priority(),
		Source:             audit.SourceSweep,
		SkipDuplicateCheck: true,
	})
	if err != nil {
		return false, err
	}

	if err := s.drops.SetHasOpenIssue(ctx, current.ID, true); err != nil {
		return true, err
	}

	if _, err := s.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       enums.NotificationOpsAlert,
		EntityType: audit.EntityDrop,
		EntityID:   current.Tag,
		To:         notify.Recipient{Phone: s.ops.Phone, Email: s.ops.Email},
		Data: map[string]any{
			"Summary": fmt.Sprintf("%s breach on drop %s (%s)", severity, current.Tag, issue.TicketID),
			"Detail":  fmt.Sprintf("status %s for %s, priority %s", current.Status, inStatus, issue.Priority),
		},
	}); err != nil {
		// Ticket and guard are already in place; only the alert failed.
		return true, fmt.Errorf("ops alert: %w", err)
	}
	return true, nil
}
