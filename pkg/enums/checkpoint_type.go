package enums

import "fmt"

// CheckpointType identifies an operator scan event. Each type maps to exactly
// one target DropStatus; several types may share a target.
type CheckpointType string

const (
	CheckpointIntakeAtOrigin   CheckpointType = "intake-at-origin"
	CheckpointPickupFromOrigin CheckpointType = "pickup-from-origin"
	CheckpointArriveAtFacility CheckpointType = "arrive-at-facility"
	CheckpointDepartFacility   CheckpointType = "depart-facility"
	CheckpointReturnToOrigin   CheckpointType = "return-to-origin"
	CheckpointMemberCollect    CheckpointType = "member-collect"
)

// checkpointTargets is the fixed checkpoint-to-status lookup. Keeping the
// mapping as data keeps it testable independently of the forward-only guard.
var checkpointTargets = map[CheckpointType]DropStatus{
	CheckpointIntakeAtOrigin:   DropStatusDropped,
	CheckpointPickupFromOrigin: DropStatusInTransit,
	CheckpointArriveAtFacility: DropStatusAtLaundry,
	CheckpointDepartFacility:   DropStatusReadyForDelivery,
	CheckpointReturnToOrigin:   DropStatusReady,
	CheckpointMemberCollect:    DropStatusCollected,
}

// String implements fmt.Stringer.
func (c CheckpointType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckpointType.
func (c CheckpointType) IsValid() bool {
	_, ok := checkpointTargets[c]
	return ok
}

// TargetStatus resolves the status this checkpoint asserts.
func (c CheckpointType) TargetStatus() (DropStatus, bool) {
	status, ok := checkpointTargets[c]
	return status, ok
}

// ParseCheckpointType converts the raw string to CheckpointType.
func ParseCheckpointType(value string) (CheckpointType, error) {
	candidate := CheckpointType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid checkpoint type %q", value)
	}
	return candidate, nil
}
