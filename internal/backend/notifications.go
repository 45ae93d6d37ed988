package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"cribb-companion/internal/models"
)

const (
	pathExpiring           = "/api/pantry/expiring"
	pathWarnings           = "/api/pantry/warnings"
	pathNotificationRead   = "/api/pantry/notify/read"
	pathNotificationDelete = "/api/pantry/notify/delete"
)

// GroupRef addresses a household by name or by join code. Name wins when both are set.
type GroupRef struct {
	Name string
	Code string
}

func (g GroupRef) IsZero() bool {
	return g.Name == "" && g.Code == ""
}

func (g GroupRef) query() url.Values {
	q := url.Values{}
	if g.Name != "" {
		q.Set("group_name", g.Name)
	} else if g.Code != "" {
		q.Set("group_code", g.Code)
	}
	return q
}

func (c *Client) ExpiringNotifications(ctx context.Context, auth http.Header, group GroupRef) ([]models.Notification, error) {
	return c.notificationList(ctx, pathExpiring, auth, group)
}

func (c *Client) WarningNotifications(ctx context.Context, auth http.Header, group GroupRef) ([]models.Notification, error) {
	return c.notificationList(ctx, pathWarnings, auth, group)
}

func (c *Client) notificationList(ctx context.Context, path string, auth http.Header, group GroupRef) ([]models.Notification, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, path, group.query(), auth, nil)
	if err != nil {
		return nil, err
	}
	notifications, err := DecodeNotificationList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return notifications, nil
}

// DecodeNotificationList accepts both list shapes the backend serves: a bare array
// (warnings) and {"notifications": [...]} (expiring). Anything else is an empty list.
// TODO: drop the bare-array branch once the warnings handler returns the envelope.
func DecodeNotificationList(raw []byte) ([]models.Notification, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON body")
	}

	parsed := gjson.ParseBytes(raw)
	var list gjson.Result
	switch {
	case parsed.IsArray():
		list = parsed
	case parsed.Get("notifications").IsArray():
		list = parsed.Get("notifications")
	default:
		return []models.Notification{}, nil
	}

	notifications := make([]models.Notification, 0, len(list.Array()))
	if err := json.Unmarshal([]byte(list.Raw), &notifications); err != nil {
		return nil, err
	}
	for i := range notifications {
		notifications[i].Type = notifications[i].Type.Normalize()
	}
	return notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, auth http.Header, group GroupRef, notificationID string) error {
	req := models.MarkReadRequest{NotificationID: notificationID}
	if group.Name != "" {
		req.GroupName = group.Name
	} else {
		req.GroupCode = group.Code
	}
	return c.do(ctx, http.MethodPost, pathNotificationRead, nil, auth, req, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, auth http.Header, group GroupRef, notificationID string) error {
	q := group.query()
	q.Set("notification_id", notificationID)
	return c.do(ctx, http.MethodDelete, pathNotificationDelete, q, auth, nil, nil)
}
