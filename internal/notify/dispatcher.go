package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Notification is one message to dispatch. EntityID ties the audit entries
// back to the drop or member the message is about.
type Notification struct {
	Kind       enums.NotificationKind
	EntityType string
	EntityID   string
	To         Recipient
	Data       map[string]any
}

// Result reports which channel delivered the notification.
type Result struct {
	Channel enums.NotificationChannel
}

// Dispatcher tries each configured channel for a kind in rank order and
// stops at the first success. Every attempt, successful or not, lands in the
// audit trail. The dispatcher holds no delivery state; callers own the
// once-per-lifecycle idempotency flags.
type Dispatcher struct {
	channels map[enums.NotificationKind][]Channel
	recorder auditRecorder
	logger   *logger.Logger
}

// NewDispatcher builds a dispatcher with the default routing: chat first,
// email as fallback, for every kind.
func NewDispatcher(chat, email Channel, recorder auditRecorder, logg *logger.Logger) (*Dispatcher, error) {
	if chat == nil || email == nil {
		return nil, fmt.Errorf("chat and email channels required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	ranked := []Channel{chat, email}
	channels := make(map[enums.NotificationKind][]Channel)
	for _, kind := range []enums.NotificationKind{
		enums.NotificationPickupConfirm,
		enums.NotificationDropReady,
		enums.NotificationPickupReminder,
		enums.NotificationPaymentDay3,
		enums.NotificationPaymentDay7,
		enums.NotificationOpsAlert,
	} {
		channels[kind] = ranked
	}

	return &Dispatcher{
		channels: channels,
		recorder: recorder,
		logger:   logg,
	}, nil
}

// Dispatch renders and delivers the notification. It returns the channel
// that accepted the message, or CodeAllChannelsFailed when every channel in
// the ranking failed.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (*Result, error) {
	if !n.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification kind")
	}
	ranked, ok := d.channels[n.Kind]
	if !ok || len(ranked) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no channels configured for kind")
	}

	msg, err := render(n.Kind, n.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render notification")
	}

	logCtx := d.logger.WithFields(ctx, map[string]any{
		"notification_kind": n.Kind.String(),
		"entity_id":         n.EntityID,
	})

	var attemptErrs error
	for _, channel := range ranked {
		sendErr := channel.Send(ctx, n.To, msg)
		if sendErr == nil {
			d.record(ctx, n, channel.Name(), audit.ActionNotificationSent, "")
			d.logger.Info(d.logger.WithField(logCtx, "channel", channel.Name().String()), "notification delivered")
			return &Result{Channel: channel.Name()}, nil
		}

		attemptErrs = multierr.Append(attemptErrs, sendErr)
		d.record(ctx, n, channel.Name(), audit.ActionNotificationFailed, sendErr.Error())
		d.logger.Warn(d.logger.WithField(logCtx, "channel", channel.Name().String()), "notification channel failed")
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeAllChannelsFailed, attemptErrs,
		fmt.Sprintf("all channels failed for %s", n.Kind))
}

func (d *Dispatcher) record(ctx context.Context, n Notification, channel enums.NotificationChannel, action, detail string) {
	entityType := n.EntityType
	if entityType == "" {
		entityType = audit.EntityNotification
	}
	value := fmt.Sprintf("%s via %s", n.Kind, channel)
	if detail != "" {
		value = fmt.Sprintf("%s: %s", value, detail)
	}
	entry := audit.Entry{
		EntityType: entityType,
		EntityID:   n.EntityID,
		Action:     action,
		NewValue:   value,
		Source:     audit.SourceDispatcher,
	}
	if err := d.recorder.Record(ctx, entry); err != nil {
		d.logger.Error(ctx, "notification audit append failed", err)
	}
}
