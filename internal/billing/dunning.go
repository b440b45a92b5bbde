package billing

import (
	"context"
	"fmt"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/members"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// Escalation ladder for failed payments, anchored to the first failure.
const (
	Day3ReminderAfter = 3 * 24 * time.Hour
	Day7ReminderAfter = 7 * 24 * time.Hour
	PauseAfter        = 10 * 24 * time.Hour

	// PauseWindow is how long a delinquent subscription stays paused before
	// Square resumes billing attempts.
	PauseWindow = 30 * 24 * time.Hour
)

type subscriptionAuthority interface {
	PauseSubscription(ctx context.Context, subscriptionID string, resumeOn time.Time) (*sq.Subscription, error)
}

// DunningResult summarizes one sweep over past-due members.
type DunningResult struct {
	Scanned  int
	Day3Sent int
	Day7Sent int
	Paused   int
	Errors   []string
}

// DunningSweeper walks every past-due member and advances them along the
// reminder ladder. Each member is handled independently; one failure never
// stops the sweep.
type DunningSweeper struct {
	members    members.Repository
	dispatcher dispatcher
	billing    subscriptionAuthority
	recorder   auditRecorder
	logger     *logger.Logger
	billingURL string
	now        func() time.Time
}

// NewDunningSweeper builds the payment escalation sweeper.
func NewDunningSweeper(
	memberRepo members.Repository,
	disp dispatcher,
	billing subscriptionAuthority,
	recorder auditRecorder,
	logg *logger.Logger,
	billingURL string,
) (*DunningSweeper, error) {
	if memberRepo == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if billing == nil {
		return nil, fmt.Errorf("subscription authority required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &DunningSweeper{
		members:    memberRepo,
		dispatcher: disp,
		billing:    billing,
		recorder:   recorder,
		logger:     logg,
		billingURL: billingURL,
		now:        time.Now,
	}, nil
}

// Sweep advances every past-due member one rung at most. A member overdue
// past several rungs (for example after sweep downtime) lands on the most
// severe applicable rung rather than replaying the skipped ones.
func (s *DunningSweeper) Sweep(ctx context.Context) (*DunningResult, error) {
	pastDue, err := s.members.ListPastDue(ctx)
	if err != nil {
		return nil, err
	}

	result := &DunningResult{Scanned: len(pastDue)}
	now := s.now().UTC()

	for i := range pastDue {
		member := &pastDue[i]
		if err := s.step(ctx, member, now, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("member %s: %v", member.ID, err))
			s.logger.Error(s.logger.WithMemberID(ctx, member.ID.String()), "dunning step failed", err)
		}
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"day3_sent": result.Day3Sent,
		"day7_sent": result.Day7Sent,
		"paused":    result.Paused,
		"errors":    len(result.Errors),
	}), "dunning sweep finished")
	return result, nil
}

func (s *DunningSweeper) step(ctx context.Context, member *models.Member, now time.Time, result *DunningResult) error {
	if member.PaymentFailedAt == nil {
		return nil
	}
	overdue := now.Sub(member.PaymentFailedAt.UTC())

	switch {
	case overdue >= PauseAfter:
		if member.SubscriptionStatus != enums.SubscriptionStatusPastDue {
			return nil
		}
		if err := s.pause(ctx, member, now); err != nil {
			return err
		}
		result.Paused++

	case overdue >= Day7ReminderAfter:
		if member.Day7ReminderSent {
			return nil
		}
		if err := s.remind(ctx, member, enums.NotificationPaymentDay7, 7); err != nil {
			return err
		}
		result.Day7Sent++

	case overdue >= Day3ReminderAfter:
		if member.Day3ReminderSent {
			return nil
		}
		if err := s.remind(ctx, member, enums.NotificationPaymentDay3, 3); err != nil {
			return err
		}
		result.Day3Sent++
	}
	return nil
}

func (s *DunningSweeper) remind(ctx context.Context, member *models.Member, kind enums.NotificationKind, day int) error {
	_, err := s.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       kind,
		EntityType: audit.EntityMember,
		EntityID:   member.ID.String(),
		To: notify.Recipient{
			MemberID: member.ID.String(),
			Phone:    member.PhoneNumber,
			Email:    member.Email,
		},
		Data: map[string]any{
			"Name":        member.FullName,
			"BillingLink": s.billingURL,
		},
	})
	if err != nil {
		return err
	}
	// The idempotency marker is set only after a confirmed send, so a failed
	// delivery is retried on the next sweep.
	return s.members.MarkDunningReminderSent(ctx, member.ID, day)
}

func (s *DunningSweeper) pause(ctx context.Context, member *models.Member, now time.Time) error {
	if member.SquareSubscriptionID != "" {
		if _, err := s.billing.PauseSubscription(ctx, member.SquareSubscriptionID, now.Add(PauseWindow)); err != nil {
			return err
		}
	}
	if err := s.members.SetSubscriptionStatus(ctx, member.ID, enums.SubscriptionStatusPaused); err != nil {
		return err
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntitySubscription,
		EntityID:   member.ID.String(),
		Action:     audit.ActionSubscriptionPaused,
		OldValue:   string(enums.SubscriptionStatusPastDue),
		NewValue:   string(enums.SubscriptionStatusPaused),
		Operator:   "system",
		Source:     audit.SourceSweep,
	}); err != nil {
		s.logger.Error(ctx, "dunning audit append failed", err)
	}
	return nil
}
