package conversation

import (
	"strings"

	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// ActionKind names one side effect the handler must perform. The decision
// layer never performs the effect itself.
type ActionKind string

const (
	ActionShowMenu        ActionKind = "show_menu"
	ActionPromptBagNumber ActionKind = "prompt_bag_number"
	ActionCreateDrop      ActionKind = "create_drop"
	ActionInvalidTag      ActionKind = "invalid_tag"
	ActionShowTracking    ActionKind = "show_tracking"
	ActionStartIssue      ActionKind = "start_issue"
	ActionRecordIssueType ActionKind = "record_issue_type"
	ActionRecordIssueDesc ActionKind = "record_issue_description"
	ActionFinalizeIssue   ActionKind = "finalize_issue"
	ActionPauseService    ActionKind = "pause_service"
	ActionResumeService   ActionKind = "resume_service"
	ActionBillingLink     ActionKind = "billing_link"
)

// Inbound is one normalized chat event from the provider boundary.
type Inbound struct {
	From       string
	Body       string
	MessageSID string
	MediaURLs  []string
}

// Decision is the pure FSM output: the next persisted state plus the single
// action the handler executes. Identical (state, input) pairs always produce
// identical decisions.
type Decision struct {
	NextState enums.ConversationState
	Action    ActionKind

	// Tag carries the bag tag for create_drop; Value carries the free text
	// for the issue-reporting steps.
	Tag   string
	Value string
}

// Decide maps the member's current conversation state and the latest input to
// the next state and action. No I/O, no clock, no randomness.
func Decide(state enums.ConversationState, msg Inbound) Decision {
	input := strings.ToLower(strings.TrimSpace(msg.Body))

	switch state {
	case enums.ConversationAwaitingBagNumber:
		if drops.ValidTag(msg.Body) {
			return Decision{
				NextState: enums.ConversationActive,
				Action:    ActionCreateDrop,
				Tag:       strings.ToUpper(strings.TrimSpace(msg.Body)),
			}
		}
		return Decision{NextState: state, Action: ActionInvalidTag}

	case enums.ConversationAwaitingIssueType:
		return Decision{
			NextState: enums.ConversationAwaitingIssueDesc,
			Action:    ActionRecordIssueType,
			Value:     input,
		}

	case enums.ConversationAwaitingIssueDesc:
		return Decision{
			NextState: enums.ConversationAwaitingIssuePhoto,
			Action:    ActionRecordIssueDesc,
			Value:     strings.TrimSpace(msg.Body),
		}

	case enums.ConversationAwaitingIssuePhoto:
		// Any non-media message closes the upload phase without an image.
		return Decision{
			NextState: enums.ConversationActive,
			Action:    ActionFinalizeIssue,
		}
	}

	// Active: commands, menu digits, direct tag submissions, then the
	// fail-safe menu for anything unrecognized.
	switch {
	case matchesAny(input, "1", "new", "new drop", "drop", "start"):
		return Decision{NextState: enums.ConversationAwaitingBagNumber, Action: ActionPromptBagNumber}
	case matchesAny(input, "2", "track", "tracking", "status", "where"):
		return Decision{NextState: enums.ConversationActive, Action: ActionShowTracking}
	case matchesAny(input, "3", "issue", "problem", "report", "help me"):
		return Decision{NextState: enums.ConversationAwaitingIssueType, Action: ActionStartIssue}
	case matchesAny(input, "4", "pause"):
		return Decision{NextState: enums.ConversationActive, Action: ActionPauseService}
	case matchesAny(input, "5", "resume", "unpause"):
		return Decision{NextState: enums.ConversationActive, Action: ActionResumeService}
	case matchesAny(input, "6", "billing", "payment", "card"):
		return Decision{NextState: enums.ConversationActive, Action: ActionBillingLink}
	case drops.ValidTag(msg.Body):
		return Decision{
			NextState: enums.ConversationActive,
			Action:    ActionCreateDrop,
			Tag:       strings.ToUpper(strings.TrimSpace(msg.Body)),
		}
	default:
		return Decision{NextState: enums.ConversationActive, Action: ActionShowMenu}
	}
}

func matchesAny(input string, candidates ...string) bool {
	for _, c := range candidates {
		if input == c {
			return true
		}
	}
	return false
}
