package domain

import "time"

type NotificationStatus string

const (
	NotificationStatusNew       NotificationStatus = "NEW"
	NotificationStatusProcessed NotificationStatus = "PROCESSED"
	NotificationStatusIgnored   NotificationStatus = "IGNORED"
	NotificationStatusFailed    NotificationStatus = "FAILED"
)

// PaymentNotification is the audit record of one inbound provider push.
type PaymentNotification struct {
	ID            string
	TransactionID string
	Source        string
	Payload       []byte
	Status        NotificationStatus
	Outcome       string
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
}
