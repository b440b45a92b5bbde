package enums

import "fmt"

// ConversationState is the member's current chat interaction mode. Together
// with the normalized inbound text it fully determines the FSM decision.
type ConversationState string

const (
	ConversationActive             ConversationState = "active"
	ConversationAwaitingBagNumber  ConversationState = "awaiting_bag_number"
	ConversationAwaitingIssueType  ConversationState = "awaiting_issue_type"
	ConversationAwaitingIssueDesc  ConversationState = "awaiting_issue_description"
	ConversationAwaitingIssuePhoto ConversationState = "awaiting_issue_photo"
)

var validConversationStates = []ConversationState{
	ConversationActive,
	ConversationAwaitingBagNumber,
	ConversationAwaitingIssueType,
	ConversationAwaitingIssueDesc,
	ConversationAwaitingIssuePhoto,
}

// IsValid reports whether the value is a known ConversationState.
func (c ConversationState) IsValid() bool {
	for _, candidate := range validConversationStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConversationState converts the raw string to ConversationState.
func ParseConversationState(value string) (ConversationState, error) {
	for _, candidate := range validConversationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation state %q", value)
}
