package enums

import "fmt"

// NotificationKind names a one-time lifecycle message. Callers persist an
// idempotency flag per kind before dispatching; the dispatcher itself stays
// stateless.
type NotificationKind string

const (
	NotificationPickupConfirm  NotificationKind = "pickup_confirm"
	NotificationDropReady      NotificationKind = "drop_ready"
	NotificationPickupReminder NotificationKind = "pickup_reminder"
	NotificationPaymentDay3    NotificationKind = "payment_day3_reminder"
	NotificationPaymentDay7    NotificationKind = "payment_day7_warning"
	NotificationOpsAlert       NotificationKind = "ops_alert"
)

var validNotificationKinds = []NotificationKind{
	NotificationPickupConfirm,
	NotificationDropReady,
	NotificationPickupReminder,
	NotificationPaymentDay3,
	NotificationPaymentDay7,
	NotificationOpsAlert,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts the raw string to NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationChannel identifies a delivery transport.
type NotificationChannel string

const (
	ChannelChat  NotificationChannel = "chat"
	ChannelEmail NotificationChannel = "email"
)

// String implements fmt.Stringer.
func (n NotificationChannel) String() string {
	return string(n)
}
