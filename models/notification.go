package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType constants.
type NotificationType string

const (
	NotificationOrderNew            NotificationType = "ORDER_NEW"
	NotificationOrderStatus         NotificationType = "ORDER_STATUS"
	NotificationDiscrepancyNew      NotificationType = "DISCREPANCY_NEW"
	NotificationDiscrepancyResolved NotificationType = "DISCREPANCY_RESOLVED"
)

// Notification is one recipient's copy of a domain event. Rows written for
// the same event are independent of each other.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string           `gorm:"type:varchar(128);not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title       string           `gorm:"type:varchar(256);not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	Link        string           `gorm:"type:varchar(512)" json:"link"`
	ReferenceID uuid.UUID        `gorm:"type:uuid;not null;index" json:"reference_id"`
	IsRead      bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time        `gorm:"not null;index:idx_notifications_user_created,priority:2" json:"created_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// NotificationList is a page of notifications. UnreadCount covers only the
// returned page; the unread-count endpoint gives the exact total.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}
