package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed state change.
type EventType string

const (
	EventOrderCreated        EventType = "order.created"
	EventOrderAccepted       EventType = "order.accepted"
	EventOrderDispatched     EventType = "order.dispatched"
	EventOrderReceived       EventType = "order.received"
	EventDiscrepancyReported EventType = "discrepancy.reported"
	EventDiscrepancyResolved EventType = "discrepancy.resolved"
)

// NotificationType maps the event to the notification its recipients get.
func (t EventType) NotificationType() NotificationType {
	switch t {
	case EventOrderCreated:
		return NotificationOrderNew
	case EventDiscrepancyReported:
		return NotificationDiscrepancyNew
	case EventDiscrepancyResolved:
		return NotificationDiscrepancyResolved
	default:
		return NotificationOrderStatus
	}
}

// DomainEvent is emitted after the order or discrepancy change it describes
// has been committed. It carries snapshots, so consumers never re-read state.
type DomainEvent struct {
	ID            uuid.UUID     `json:"id"`
	Type          EventType     `json:"type"`
	OccurredAt    time.Time     `json:"occurred_at"`
	Actor         Claim         `json:"actor"`
	Order         *Order        `json:"order,omitempty"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// NewDomainEvent stamps a fresh event id.
func NewDomainEvent(eventType EventType, actor Claim, at time.Time) DomainEvent {
	return DomainEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: at,
		Actor:      actor,
	}
}

// DispatchResult summarises one fan-out.
type DispatchResult struct {
	Recipients int `json:"recipients"`
	Written    int `json:"written"`
	Failed     int `json:"failed"`
}
