package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/internal/members"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// PauseWindow is the fixed billing pause a member can request over chat.
const PauseWindow = 30 * 24 * time.Hour

const dedupTTL = 24 * time.Hour

const (
	replySignup = "Hi! We don't recognize this number yet. Sign up at sudsy.example.com to get started."
	replyMenu   = "What would you like to do?\n" +
		"1. Start a new drop\n" +
		"2. Track my laundry\n" +
		"3. Report an issue\n" +
		"4. Pause my subscription\n" +
		"5. Resume my subscription\n" +
		"6. Update billing"
	replyBagPrompt     = "Great! What's the tag number on your bag? (e.g. B007)"
	replyInvalidTag    = "That doesn't look like a valid tag. Tags are a letter plus up to four digits, like B007."
	replyNoDrops       = "You have no drops remaining in this cycle. Your allowance resets with your next billing cycle."
	replyIssuePrompt   = "Sorry to hear that. What kind of issue?\n1. Damaged item\n2. Missing item\n3. Billing\n4. Something else"
	replyDescPrompt    = "Got it. Please describe what happened."
	replyPhotoPrompt   = "Thanks. If you have a photo, attach it now. Otherwise reply with anything to finish."
	replyNoTracking    = "You have no bags in the pipeline right now."
	replyNoSub         = "We couldn't find a subscription on your account. Reply 6 to check your billing."
	replyPauseConfirm  = "Done. Your subscription is paused for the next 30 days. Reply 5 anytime to resume."
	replyResumeConfirm = "Welcome back! Your subscription is active again."
)

type subscriptionAuthority interface {
	PauseSubscription(ctx context.Context, subscriptionID string, resumeOn time.Time) (*sq.Subscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*sq.Subscription, error)
}

type dedupGuard interface {
	IdempotencyKey(scope, id string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Handler executes FSM decisions against the domain services. It owns no
// conversation state of its own; everything it needs is on the Member row and
// in the inbound message.
type Handler struct {
	members    members.Repository
	drops      drops.Service
	issues     issues.Service
	billing    subscriptionAuthority
	dedup      dedupGuard
	recorder   auditRecorder
	logger     *logger.Logger
	billingURL string
	now        func() time.Time
}

// NewHandler builds the conversational handler.
func NewHandler(
	memberRepo members.Repository,
	dropService drops.Service,
	issueService issues.Service,
	billing subscriptionAuthority,
	dedup dedupGuard,
	recorder auditRecorder,
	logg *logger.Logger,
	billingURL string,
) (*Handler, error) {
	if memberRepo == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if dropService == nil {
		return nil, fmt.Errorf("drops service required")
	}
	if issueService == nil {
		return nil, fmt.Errorf("issues service required")
	}
	if billing == nil {
		return nil, fmt.Errorf("subscription authority required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("dedup guard required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{
		members:    memberRepo,
		drops:      dropService,
		issues:     issueService,
		billing:    billing,
		dedup:      dedup,
		recorder:   recorder,
		logger:     logg,
		billingURL: billingURL,
		now:        time.Now,
	}, nil
}

// Handle processes one inbound chat event and returns the reply text. An
// empty reply with a nil error means the event was a duplicate delivery and
// was dropped before touching any state.
func (h *Handler) Handle(ctx context.Context, msg Inbound) (reply string, err error) {
	if msg.MessageSID != "" {
		key := h.dedup.IdempotencyKey("chat-sid", msg.MessageSID)
		fresh, guardErr := h.dedup.SetNX(ctx, key, 1, dedupTTL)
		if guardErr != nil {
			// A broken dedup store should not silence members; proceed and
			// accept the bounded duplicate risk.
			h.logger.Error(ctx, "chat dedup check failed", guardErr)
		} else if !fresh {
			return "", nil
		} else {
			// Release the guard on failure so the provider's redelivery of
			// the same message gets a clean attempt.
			defer func() {
				if err == nil {
					return
				}
				if delErr := h.dedup.Del(ctx, key); delErr != nil {
					h.logger.Error(ctx, "chat dedup release failed", delErr)
				}
			}()
		}
	}

	member, err := h.members.FindByPhone(ctx, msg.From)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return replySignup, nil
		}
		return "", err
	}

	ctx = h.logger.WithMemberID(ctx, member.ID.String())
	decision := Decide(member.ConversationState, msg)
	return h.execute(ctx, member, msg, decision)
}

func (h *Handler) execute(ctx context.Context, member *models.Member, msg Inbound, d Decision) (string, error) {
	switch d.Action {
	case ActionShowMenu:
		if err := h.transition(ctx, member, d.NextState); err != nil {
			return "", err
		}
		return replyMenu, nil

	case ActionPromptBagNumber:
		// Exhausted members never enter the bag-number state; the menu is a
		// dead end until the allowance resets.
		if member.DropsRemaining <= 0 {
			return replyNoDrops, nil
		}
		if err := h.transition(ctx, member, d.NextState); err != nil {
			return "", err
		}
		return replyBagPrompt, nil

	case ActionInvalidTag:
		return replyInvalidTag, nil

	case ActionCreateDrop:
		return h.createDrop(ctx, member, d)

	case ActionShowTracking:
		return h.showTracking(ctx, member)

	case ActionStartIssue:
		if err := h.transition(ctx, member, d.NextState); err != nil {
			return "", err
		}
		return replyIssuePrompt, nil

	case ActionRecordIssueType:
		issueType := classifyIssueType(d.Value)
		if err := h.members.SetPendingIssue(ctx, member.ID, string(issueType), ""); err != nil {
			return "", err
		}
		if err := h.transition(ctx, member, d.NextState); err != nil {
			return "", err
		}
		return replyDescPrompt, nil

	case ActionRecordIssueDesc:
		if err := h.members.SetPendingIssue(ctx, member.ID, member.PendingIssueType, d.Value); err != nil {
			return "", err
		}
		if err := h.transition(ctx, member, d.NextState); err != nil {
			return "", err
		}
		return replyPhotoPrompt, nil

	case ActionFinalizeIssue:
		return h.finalizeIssue(ctx, member, msg)

	case ActionPauseService:
		return h.pause(ctx, member)

	case ActionResumeService:
		return h.resume(ctx, member)

	case ActionBillingLink:
		if h.billingURL == "" {
			return replyNoSub, nil
		}
		return fmt.Sprintf("Manage your billing here: %s", h.billingURL), nil
	}

	return replyMenu, nil
}

func (h *Handler) createDrop(ctx context.Context, member *models.Member, d Decision) (string, error) {
	drop, err := h.drops.Create(ctx, drops.CreateInput{
		MemberID:   member.ID,
		Tag:        d.Tag,
		OperatorID: "member:" + member.PhoneNumber,
		Source:     audit.SourceConversation,
	})
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodePrecondition):
			// Allowance ran out; fall back to Active rather than trapping the
			// member in the bag-number state.
			if terr := h.transition(ctx, member, enums.ConversationActive); terr != nil {
				h.logger.Error(ctx, "state reset failed", terr)
			}
			return replyNoDrops, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			return fmt.Sprintf("Tag %s is already in use. Double-check the bag and try another tag.", d.Tag), nil
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			return replyInvalidTag, nil
		}
		return "", err
	}

	if err := h.transition(ctx, member, d.NextState); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bag %s is checked in! We'll message you when it's ready.", drop.Tag), nil
}

func (h *Handler) showTracking(ctx context.Context, member *models.Member) (string, error) {
	open, err := h.drops.Track(ctx, member.ID)
	if err != nil {
		return "", err
	}
	if len(open) == 0 {
		return replyNoTracking, nil
	}

	var b strings.Builder
	b.WriteString("Your laundry:\n")
	for _, drop := range open {
		fmt.Fprintf(&b, "%s: %s\n", drop.Tag, describeStatus(drop.Status))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handler) finalizeIssue(ctx context.Context, member *models.Member, msg Inbound) (string, error) {
	issueType, err := enums.ParseIssueType(member.PendingIssueType)
	if err != nil {
		issueType = enums.IssueTypeGeneralInquiry
	}

	var attachments json.RawMessage
	if len(msg.MediaURLs) > 0 {
		raw, err := json.Marshal(msg.MediaURLs)
		if err == nil {
			attachments = raw
		}
	}

	issue, err := h.issues.Open(ctx, issues.OpenInput{
		MemberID:    member.ID,
		Type:        issueType,
		Description: member.PendingIssueDescription,
		Attachments: attachments,
		Source:      audit.SourceConversation,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) && issue != nil {
			h.resetIssueFlow(ctx, member)
			return fmt.Sprintf("You already have an open ticket for this: %s. We're on it.", issue.TicketID), nil
		}
		return "", err
	}

	h.resetIssueFlow(ctx, member)
	return fmt.Sprintf("Thanks. Your ticket %s is open and our team will follow up shortly.", issue.TicketID), nil
}

func (h *Handler) pause(ctx context.Context, member *models.Member) (string, error) {
	if member.SquareSubscriptionID == "" {
		return replyNoSub, nil
	}
	resumeOn := h.now().UTC().Add(PauseWindow)
	if _, err := h.billing.PauseSubscription(ctx, member.SquareSubscriptionID, resumeOn); err != nil {
		return "", err
	}
	if err := h.members.SetSubscriptionStatus(ctx, member.ID, enums.SubscriptionStatusPaused); err != nil {
		return "", err
	}
	h.record(ctx, member, audit.ActionSubscriptionPaused,
		string(member.SubscriptionStatus), string(enums.SubscriptionStatusPaused))
	return replyPauseConfirm, nil
}

func (h *Handler) resume(ctx context.Context, member *models.Member) (string, error) {
	if member.SquareSubscriptionID == "" {
		return replyNoSub, nil
	}
	if _, err := h.billing.ResumeSubscription(ctx, member.SquareSubscriptionID); err != nil {
		return "", err
	}
	if err := h.members.SetSubscriptionStatus(ctx, member.ID, enums.SubscriptionStatusActive); err != nil {
		return "", err
	}
	h.record(ctx, member, audit.ActionSubscriptionResume,
		string(member.SubscriptionStatus), string(enums.SubscriptionStatusActive))
	return replyResumeConfirm, nil
}

func (h *Handler) transition(ctx context.Context, member *models.Member, next enums.ConversationState) error {
	if member.ConversationState == next {
		return nil
	}
	if err := h.members.SetConversationState(ctx, member.ID, next); err != nil {
		return err
	}
	member.ConversationState = next
	return nil
}

func (h *Handler) resetIssueFlow(ctx context.Context, member *models.Member) {
	if err := h.members.ClearPendingIssue(ctx, member.ID); err != nil {
		h.logger.Error(ctx, "pending issue clear failed", err)
	}
	if err := h.transition(ctx, member, enums.ConversationActive); err != nil {
		h.logger.Error(ctx, "state reset failed", err)
	}
}

func (h *Handler) record(ctx context.Context, member *models.Member, action, oldValue, newValue string) {
	if err := h.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntitySubscription,
		EntityID:   member.ID.String(),
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		Operator:   "member:" + member.PhoneNumber,
		Source:     audit.SourceConversation,
	}); err != nil {
		h.logger.Error(ctx, "subscription audit append failed", err)
	}
}

func classifyIssueType(input string) enums.IssueType {
	switch {
	case matchesAny(input, "1", "damaged", "damaged item", "damage"):
		return enums.IssueTypeDamagedItem
	case matchesAny(input, "2", "missing", "missing item", "lost"):
		return enums.IssueTypeMissingItem
	case matchesAny(input, "3", "billing", "payment"):
		return enums.IssueTypeBilling
	default:
		return enums.IssueTypeGeneralInquiry
	}
}

func describeStatus(status enums.DropStatus) string {
	switch status.Public() {
	case enums.DropStatusDropped:
		return "dropped off, awaiting pickup"
	case enums.DropStatusAtLaundry:
		return "at the laundry"
	case enums.DropStatusReady:
		return "ready for pickup"
	case enums.DropStatusCollected:
		return "collected"
	default:
		return string(status)
	}
}
