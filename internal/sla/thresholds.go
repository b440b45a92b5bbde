package sla

import (
	"time"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// Severity classifies how far a drop has overrun its stage budget.
type Severity string

const (
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityForgotten Severity = "forgotten"
)

// threshold is the per-stage time budget. Warning marks at-risk, critical
// marks breached.
type threshold struct {
	warning  time.Duration
	critical time.Duration
}

// Stages are keyed by the externally-visible status, so the transit and
// delivery legs inherit the budget of the stage they collapse into.
var thresholds = map[enums.DropStatus]threshold{
	enums.DropStatusDropped:   {warning: 6 * time.Hour, critical: 12 * time.Hour},
	enums.DropStatusAtLaundry: {warning: 30 * time.Hour, critical: 48 * time.Hour},
	enums.DropStatusReady:     {warning: 96 * time.Hour, critical: 120 * time.Hour},
}

// ForgottenAfter is the collection-window expiry for Ready drops. Beyond it
// the bag is treated as possibly abandoned rather than merely late.
const ForgottenAfter = 168 * time.Hour

// Classify evaluates one drop's time in status. The boolean is false when the
// drop is within budget. Pure: same inputs, same answer.
func Classify(status enums.DropStatus, inStatus time.Duration) (Severity, bool) {
	if status == enums.DropStatusReady && inStatus >= ForgottenAfter {
		return SeverityForgotten, true
	}

	limits, ok := thresholds[status.Public()]
	if !ok {
		return "", false
	}
	switch {
	case inStatus >= limits.critical:
		return SeverityCritical, true
	case inStatus >= limits.warning:
		return SeverityWarning, true
	default:
		return "", false
	}
}

// Priority maps a severity to the ticket priority the ops queue expects.
// Forgotten bags rank lowest: the member, not the pipeline, is late.
func (s Severity) Priority() enums.IssuePriority {
	switch s {
	case SeverityCritical:
		return enums.IssuePriorityUrgent
	case SeverityWarning:
		return enums.IssuePriorityHigh
	case SeverityForgotten:
		return enums.IssuePriorityLow
	default:
		return enums.IssuePriorityMedium
	}
}

// IssueType maps a severity to the ticket classification.
func (s Severity) IssueType() enums.IssueType {
	if s == SeverityForgotten {
		return enums.IssueTypeForgottenDrop
	}
	return enums.IssueTypeStuckDrop
}
