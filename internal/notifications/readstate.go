package notifications

import (
	"sort"

	"cribb-companion/internal/models"
)

// DeriveReadState reports whether userID appears in the notification's read receipts.
// An anonymous viewer has read nothing.
func DeriveReadState(n models.Notification, userID string) bool {
	if userID == "" {
		return false
	}
	for _, reader := range n.ReadBy {
		if reader == userID {
			return true
		}
	}
	return false
}

// Merge concatenates the category lists, orders them newest first and derives read state
// for userID. Entries with equal timestamps keep their input order.
func Merge(expiring, warnings []models.Notification, userID string) []models.Notification {
	feed := make([]models.Notification, 0, len(expiring)+len(warnings))
	feed = append(feed, expiring...)
	feed = append(feed, warnings...)

	for i := range feed {
		feed[i].IsRead = DeriveReadState(feed[i], userID)
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	return feed
}

func CountUnread(feed []models.Notification) int {
	count := 0
	for _, n := range feed {
		if !n.IsRead {
			count++
		}
	}
	return count
}
