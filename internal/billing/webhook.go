package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/members"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

const webhookDedupTTL = 7 * 24 * time.Hour

type dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) (*notify.Result, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type dedupGuard interface {
	IdempotencyKey(scope, id string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// Event is the Square webhook envelope, narrowed to the fields the payment
// lifecycle cares about.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Invoice      *EventInvoice      `json:"invoice"`
	Subscription *EventSubscription `json:"subscription"`
}

type EventInvoice struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

type EventSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WebhookService applies Square billing events to member state. Square is the
// billing authority; this service only mirrors payment outcomes onto the
// member row and drives the recovery side effects.
type WebhookService struct {
	members       members.Repository
	dispatcher    dispatcher
	recorder      auditRecorder
	dedup         dedupGuard
	logger        *logger.Logger
	dropsPerCycle int
	now           func() time.Time
}

// NewWebhookService builds the Square webhook processor.
func NewWebhookService(
	memberRepo members.Repository,
	disp dispatcher,
	recorder auditRecorder,
	dedup dedupGuard,
	logg *logger.Logger,
	dropsPerCycle int,
) (*WebhookService, error) {
	if memberRepo == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("dedup guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dropsPerCycle <= 0 {
		return nil, fmt.Errorf("drops per cycle must be positive")
	}
	return &WebhookService{
		members:       memberRepo,
		dispatcher:    disp,
		recorder:      recorder,
		dedup:         dedup,
		logger:        logg,
		dropsPerCycle: dropsPerCycle,
		now:           time.Now,
	}, nil
}

// HandleEvent processes one Square event. Unknown event types are
// acknowledged without action so Square stops redelivering them. Duplicate
// deliveries of a known event are dropped by event id.
func (s *WebhookService) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	eventType := strings.ToLower(event.Type)
	switch eventType {
	case "invoice.payment_failed", "invoice.payment_made", "invoice.paid",
		"subscription.updated", "subscription.canceled":
	default:
		return nil
	}

	if event.EventID != "" {
		key := s.dedup.IdempotencyKey("square-event", event.EventID)
		fresh, err := s.dedup.SetNX(ctx, key, 1, webhookDedupTTL)
		if err != nil {
			s.logger.Error(ctx, "webhook dedup check failed", err)
		} else if !fresh {
			return nil
		}
	}

	switch eventType {
	case "invoice.payment_failed":
		return s.paymentFailed(ctx, event)
	case "invoice.payment_made", "invoice.paid":
		return s.paymentRecovered(ctx, event)
	case "subscription.updated", "subscription.canceled":
		return s.subscriptionChanged(ctx, event)
	}
	return nil
}

func (s *WebhookService) paymentFailed(ctx context.Context, event *Event) error {
	member, err := s.memberForEvent(ctx, event)
	if err != nil {
		return err
	}

	// Re-failures inside an open dunning window keep the original anchor so
	// the ladder does not restart.
	if member.PaymentFailedAt != nil {
		return nil
	}

	failedAt := s.now().UTC()
	if err := s.members.MarkPaymentFailed(ctx, member.ID, failedAt); err != nil {
		return err
	}

	s.record(ctx, member, audit.ActionPaymentFailed,
		string(member.SubscriptionStatus), string(enums.SubscriptionStatusPastDue))
	s.logger.Info(s.logger.WithMemberID(ctx, member.ID.String()), "payment failure recorded")
	return nil
}

func (s *WebhookService) paymentRecovered(ctx context.Context, event *Event) error {
	member, err := s.memberForEvent(ctx, event)
	if err != nil {
		return err
	}

	// Paid invoices for members who were never in dunning are the normal
	// renewal path; the allowance refresh below covers both cases.
	inDunning := member.PaymentFailedAt != nil

	if inDunning {
		if err := s.members.ClearPaymentFailure(ctx, member.ID); err != nil {
			return err
		}
		s.record(ctx, member, audit.ActionPaymentRecovered,
			string(member.SubscriptionStatus), string(enums.SubscriptionStatusActive))
	}

	if err := s.members.GrantDropAllowance(ctx, member.ID, s.dropsPerCycle); err != nil {
		return err
	}

	s.logger.Info(s.logger.WithMemberID(ctx, member.ID.String()), "payment applied")
	return nil
}

func (s *WebhookService) subscriptionChanged(ctx context.Context, event *Event) error {
	sub := event.Data.Object.Subscription
	if sub == nil || sub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing")
	}
	member, err := s.members.FindBySquareSubscriptionID(ctx, sub.ID)
	if err != nil {
		return err
	}

	next, ok := mapSquareStatus(sub.Status)
	if !ok || next == member.SubscriptionStatus {
		return nil
	}
	if err := s.members.SetSubscriptionStatus(ctx, member.ID, next); err != nil {
		return err
	}
	s.record(ctx, member, audit.ActionStatusChanged,
		string(member.SubscriptionStatus), string(next))
	return nil
}

func (s *WebhookService) memberForEvent(ctx context.Context, event *Event) (*models.Member, error) {
	subscriptionID := ""
	if event.Data.Object.Invoice != nil {
		subscriptionID = event.Data.Object.Invoice.SubscriptionID
	}
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from invoice event")
	}
	return s.members.FindBySquareSubscriptionID(ctx, subscriptionID)
}

func (s *WebhookService) record(ctx context.Context, member *models.Member, action, oldValue, newValue string) {
	if err := s.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntitySubscription,
		EntityID:   member.ID.String(),
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		Operator:   "square",
		Source:     audit.SourceWebhook,
	}); err != nil {
		s.logger.Error(ctx, "billing audit append failed", err)
	}
}

func mapSquareStatus(raw string) (enums.SubscriptionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE":
		return enums.SubscriptionStatusActive, true
	case "PAUSED":
		return enums.SubscriptionStatusPaused, true
	case "CANCELED":
		return enums.SubscriptionStatusCancelled, true
	case "PENDING_CANCEL":
		return enums.SubscriptionStatusCancelling, true
	default:
		return "", false
	}
}
