package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationTypeExpiring   NotificationType = "expiring"
	NotificationTypeExpired    NotificationType = "expired"
	NotificationTypeLowStock   NotificationType = "low_stock"
	NotificationTypeOutOfStock NotificationType = "out_of_stock"
)

// The backend writes "expiring_soon" for what the frontend calls "expiring".
const notificationTypeExpiringSoon NotificationType = "expiring_soon"

// Normalize maps backend spellings onto the four known types. Unknown values pass through.
func (t NotificationType) Normalize() NotificationType {
	if t == notificationTypeExpiringSoon {
		return NotificationTypeExpiring
	}
	return t
}

// Notification is a pantry alert as served by the Cribb API.
//
// IsRead is never trusted from the wire: it is recomputed from ReadBy for the viewing user
// every time the feed is built.
type Notification struct {
	ID              string           `json:"id"`
	GroupID         string           `json:"group_id"`
	ItemID          string           `json:"item_id"`
	ItemName        string           `json:"item_name"`
	Type            NotificationType `json:"type"`
	Message         string           `json:"message"`
	CreatedAt       time.Time        `json:"created_at"`
	ReadBy          []string         `json:"read_by"`
	CurrentQuantity *float64         `json:"current_quantity,omitempty"`
	Unit            string           `json:"unit,omitempty"`
	IsRead          bool             `json:"is_read"`
}

// Layouts tried for created_at, in order. Zoneless stamps are read as UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON decodes a notification, leaving CreatedAt zero when the backend sends a
// timestamp it cannot parse instead of failing the whole list.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"created_at"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.CreatedAt = parseCreatedAt(aux.CreatedAt)
	return nil
}

func parseCreatedAt(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type NotificationResponse struct {
	Notifications []Notification `json:"notifications"`
	Count         int            `json:"count"`
	UnreadCount   int            `json:"unread_count"`
}

type MarkReadRequest struct {
	NotificationID string `json:"notification_id"`
	GroupName      string `json:"group_name,omitempty"`
	GroupCode      string `json:"group_code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
