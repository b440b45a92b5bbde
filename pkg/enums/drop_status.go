package enums

import "fmt"

// DropStatus tracks a drop through the pipeline. The declared order is the
// canonical forward order; automated code may only move a drop toward higher
// ordering indexes.
type DropStatus string

const (
	DropStatusDropped          DropStatus = "dropped"
	DropStatusInTransit        DropStatus = "in_transit"
	DropStatusAtLaundry        DropStatus = "at_laundry"
	DropStatusReadyForDelivery DropStatus = "ready_for_delivery"
	DropStatusReady            DropStatus = "ready"
	DropStatusCollected        DropStatus = "collected"
)

var dropStatusOrder = []DropStatus{
	DropStatusDropped,
	DropStatusInTransit,
	DropStatusAtLaundry,
	DropStatusReadyForDelivery,
	DropStatusReady,
	DropStatusCollected,
}

// String implements fmt.Stringer.
func (d DropStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DropStatus.
func (d DropStatus) IsValid() bool {
	for _, candidate := range dropStatusOrder {
		if candidate == d {
			return true
		}
	}
	return false
}

// Index returns the position of the status in the forward ordering, or -1 for
// unknown values. Transition guards compare indexes, never raw strings.
func (d DropStatus) Index() int {
	for i, candidate := range dropStatusOrder {
		if candidate == d {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether the drop has left the open pipeline.
func (d DropStatus) IsTerminal() bool {
	return d == DropStatusCollected
}

// Public collapses the internal transit stages into the member-facing status.
// InTransit reads as at_laundry and ReadyForDelivery reads as ready so the
// chat surface only ever shows the simpler four-stage pipeline.
func (d DropStatus) Public() DropStatus {
	switch d {
	case DropStatusInTransit:
		return DropStatusAtLaundry
	case DropStatusReadyForDelivery:
		return DropStatusReady
	default:
		return d
	}
}

// ParseDropStatus converts the raw string to DropStatus.
func ParseDropStatus(value string) (DropStatus, error) {
	for _, candidate := range dropStatusOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid drop status %q", value)
}
