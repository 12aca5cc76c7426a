package models

import "time"

// NotificationType classifies candidate-facing notifications.
type NotificationType string

const (
	NotificationTypeApplicationCreated NotificationType = "APPLICATION_CREATED"
	NotificationTypeStatusUpdate       NotificationType = "STATUS_UPDATE"
	NotificationTypeDocumentRequest    NotificationType = "DOCUMENT_REQUEST"
)

// NotificationStatus tracks delivery of a notification.
type NotificationStatus string

const (
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusDelivered NotificationStatus = "DELIVERED"
	NotificationStatusRead      NotificationStatus = "READ"
)

// Notification is a persisted record of a message sent to a candidate about
// one of their applications.
type Notification struct {
	ID            string             `db:"id" json:"id"`
	UserID        string             `db:"user_id" json:"user_id"`
	ApplicationID string             `db:"application_id" json:"application_id"`
	Type          NotificationType   `db:"type" json:"type"`
	Message       string             `db:"message" json:"message"`
	Status        NotificationStatus `db:"status" json:"status"`
	SentAt        time.Time          `db:"sent_at" json:"sent_at"`
	ReadAt        *time.Time         `db:"read_at" json:"read_at,omitempty"`
}
