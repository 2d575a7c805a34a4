package enums

import "slices"

// NotificationRecipient says whether a notification targets a buyer or a shop.
type NotificationRecipient string

const (
	NotificationRecipientBuyer NotificationRecipient = "buyer"
	NotificationRecipientShop  NotificationRecipient = "shop"
)

var validNotificationRecipients = []NotificationRecipient{
	NotificationRecipientBuyer,
	NotificationRecipientShop,
}

func (n NotificationRecipient) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationRecipient.
func (n NotificationRecipient) IsValid() bool {
	return slices.Contains(validNotificationRecipients, n)
}

// ParseNotificationRecipient converts raw input into a NotificationRecipient.
func ParseNotificationRecipient(value string) (NotificationRecipient, error) {
	return parse(value, validNotificationRecipients, "notification recipient")
}
