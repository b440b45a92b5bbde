package enums

import "fmt"

// IssueType classifies a support or operational ticket.
type IssueType string

const (
	IssueTypeStuckDrop      IssueType = "stuck_drop"
	IssueTypeForgottenDrop  IssueType = "forgotten_drop"
	IssueTypeDamagedItem    IssueType = "damaged_item"
	IssueTypeMissingItem    IssueType = "missing_item"
	IssueTypeBilling        IssueType = "billing"
	IssueTypeGeneralInquiry IssueType = "general_inquiry"
)

var validIssueTypes = []IssueType{
	IssueTypeStuckDrop,
	IssueTypeForgottenDrop,
	IssueTypeDamagedItem,
	IssueTypeMissingItem,
	IssueTypeBilling,
	IssueTypeGeneralInquiry,
}

// IsValid reports whether the value is a known IssueType.
func (i IssueType) IsValid() bool {
	for _, candidate := range validIssueTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIssueType converts the raw string to IssueType.
func ParseIssueType(value string) (IssueType, error) {
	for _, candidate := range validIssueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue type %q", value)
}

// IssuePriority ranks tickets for the operations queue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "low"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityHigh   IssuePriority = "high"
	IssuePriorityUrgent IssuePriority = "urgent"
)

var validIssuePriorities = []IssuePriority{
	IssuePriorityLow,
	IssuePriorityMedium,
	IssuePriorityHigh,
	IssuePriorityUrgent,
}

// IsValid reports whether the value is a known IssuePriority.
func (i IssuePriority) IsValid() bool {
	for _, candidate := range validIssuePriorities {
		if candidate == i {
			return true
		}
	}
	return false
}

// IssueStatus tracks a ticket through triage.
type IssueStatus string

const (
	IssueStatusOpen         IssueStatus = "open"
	IssueStatusInProgress   IssueStatus = "in_progress"
	IssueStatusAwaitingInfo IssueStatus = "awaiting_info"
	IssueStatusResolved     IssueStatus = "resolved"
	IssueStatusClosed       IssueStatus = "closed"
)

var validIssueStatuses = []IssueStatus{
	IssueStatusOpen,
	IssueStatusInProgress,
	IssueStatusAwaitingInfo,
	IssueStatusResolved,
	IssueStatusClosed,
}

// IsValid reports whether the value is a known IssueStatus.
func (i IssueStatus) IsValid() bool {
	for _, candidate := range validIssueStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}
