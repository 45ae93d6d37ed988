package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cribb-companion/internal/models"
	"cribb-companion/internal/notifications"
)

type NotificationHandler struct {
	aggregator *notifications.Aggregator
}

func NewNotificationHandler(aggregator *notifications.Aggregator) *NotificationHandler {
	return &NotificationHandler{aggregator: aggregator}
}

// GetNotifications returns the current feed without contacting the backend.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	snapshot := h.aggregator.Snapshot()
	c.JSON(http.StatusOK, models.NotificationResponse{
		Notifications: snapshot.Notifications,
		Count:         len(snapshot.Notifications),
		UnreadCount:   snapshot.UnreadCount,
	})
}

// GetLatest returns the newest entries for the dropdown.
func (h *NotificationHandler) GetLatest(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(notifications.DefaultLatestLimit)))
	if err != nil || limit < 1 || limit > 100 {
		limit = notifications.DefaultLatestLimit
	}

	latest := h.aggregator.Latest(limit)
	c.JSON(http.StatusOK, gin.H{
		"notifications": latest,
		"unread_count":  h.aggregator.UnreadCount(),
	})
}

// Refresh fetches now. A refresh while one is running returns the current feed.
func (h *NotificationHandler) Refresh(c *gin.Context) {
	feed := h.aggregator.Fetch(c.Request.Context())
	c.JSON(http.StatusOK, models.NotificationResponse{
		Notifications: feed,
		Count:         len(feed),
		UnreadCount:   notifications.CountUnread(feed),
	})
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unread_count": h.aggregator.UnreadCount()})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	if err := h.aggregator.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Notification marked as read"})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.aggregator.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Notification deleted"})
}
