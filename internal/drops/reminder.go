package drops

import (
	"context"
	"fmt"
	"time"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// DefaultReminderAfter is how long a drop may sit in Ready before the member
// gets a pickup nudge.
const DefaultReminderAfter = 48 * time.Hour

// ReminderResult summarizes one pickup-reminder sweep.
type ReminderResult struct {
	Scanned int      `json:"scanned"`
	Sent    int      `json:"sent"`
	Errors  []string `json:"errors,omitempty"`
}

// ReminderSweeper nudges members whose cleaned bags have been waiting. One
// reminder per drop lifecycle, guarded by the pickup_reminder_sent flag.
type ReminderSweeper struct {
	repo          Repository
	members       memberStore
	dispatcher    dispatcher
	logger        *logger.Logger
	reminderAfter time.Duration
	now           func() time.Time
}

// NewReminderSweeper builds the pickup-reminder sweep.
func NewReminderSweeper(repo Repository, members memberStore, d dispatcher, logg *logger.Logger) (*ReminderSweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("drops repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("member store required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ReminderSweeper{
		repo:          repo,
		members:       members,
		dispatcher:    d,
		logger:        logg,
		reminderAfter: DefaultReminderAfter,
		now:           time.Now,
	}, nil
}

// Sweep processes every due drop, isolating per-item failures so one bad row
// never aborts the batch. The flag is set only after a successful send; a
// failed send is retried on the next sweep.
func (s *ReminderSweeper) Sweep(ctx context.Context) (*ReminderResult, error) {
	cutoff := s.now().UTC().Add(-s.reminderAfter)
	due, err := s.repo.ListReadyForReminder(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{Scanned: len(due)}
	for i := range due {
		drop := due[i]
		if err := s.remind(ctx, &drop); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", drop.Tag, err))
			s.logger.Error(s.logger.WithDropTag(ctx, drop.Tag), "pickup reminder failed", err)
			continue
		}
		result.Sent++
	}
	return result, nil
}

func (s *ReminderSweeper) remind(ctx context.Context, drop *models.Drop) error {
	member, err := s.members.FindByID(ctx, drop.MemberID)
	if err != nil {
		return err
	}
	_, err = s.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       enums.NotificationPickupReminder,
		EntityType: audit.EntityDrop,
		EntityID:   drop.Tag,
		To: notify.Recipient{
			MemberID: member.ID.String(),
			Phone:    member.PhoneNumber,
			Email:    member.Email,
		},
		Data: map[string]any{"Tag": drop.Tag},
	})
	if err != nil {
		return err
	}
	return s.repo.MarkNotificationSent(ctx, drop.ID, enums.NotificationPickupReminder)
}
