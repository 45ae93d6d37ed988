// Package notifications builds the household's pantry alert feed from the expiring and
// warnings endpoints and keeps it, with its unread count, as observable state.
package notifications

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cribb-companion/internal/backend"
	"cribb-companion/internal/metrics"
	"cribb-companion/internal/models"
	"cribb-companion/internal/observable"
)

const DefaultLatestLimit = 3

var ErrNoGroup = errors.New("user does not belong to a group")

type Backend interface {
	ExpiringNotifications(ctx context.Context, auth http.Header, group backend.GroupRef) ([]models.Notification, error)
	WarningNotifications(ctx context.Context, auth http.Header, group backend.GroupRef) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, auth http.Header, group backend.GroupRef, notificationID string) error
	DeleteNotification(ctx context.Context, auth http.Header, group backend.GroupRef, notificationID string) error
}

// Session is the view of the signed-in user the aggregator needs.
type Session interface {
	CurrentUser() *models.User
	AuthHeaders() (http.Header, error)
}

// Snapshot is a feed and the unread count computed from it.
type Snapshot struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

type Aggregator struct {
	backend Backend
	session Session
	log     logrus.FieldLogger

	fetching atomic.Bool

	// mu serialises replacement of the feed so the unread count always matches it.
	mu      sync.Mutex
	current []models.Notification
	feed    *observable.Value[[]models.Notification]
	unread  *observable.Value[int]
	loading *observable.Value[bool]
}

func NewAggregator(backend Backend, session Session, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{
		backend: backend,
		session: session,
		log:     log.WithField("component", "notifications"),
		current: []models.Notification{},
		feed:    observable.NewValue([]models.Notification{}),
		unread:  observable.NewValue(0),
		loading: observable.NewValue(false),
	}
}

// Fetch refreshes the feed from both categories and returns it. While another fetch is in
// flight it returns the current feed without touching the network. Without a group it
// returns an empty list and leaves the feed alone.
//
// Once started, a fetch runs to completion even if ctx is cancelled; the backend client's
// timeout bounds it. A ctx already done on entry returns the current feed.
func (a *Aggregator) Fetch(ctx context.Context) []models.Notification {
	if ctx.Err() != nil {
		metrics.RecordNotificationFetch("aborted", 0)
		return a.Feed()
	}
	if !a.fetching.CompareAndSwap(false, true) {
		a.log.Debug("Fetch already in progress, skipping")
		metrics.RecordNotificationFetch("coalesced", 0)
		return a.Feed()
	}
	defer a.fetching.Store(false)

	user := a.session.CurrentUser()
	group := groupOf(user)
	if group.IsZero() {
		metrics.RecordNotificationFetch("skipped", 0)
		return []models.Notification{}
	}
	headers, err := a.session.AuthHeaders()
	if err != nil {
		a.log.WithError(err).Debug("Skipping fetch without a session")
		metrics.RecordNotificationFetch("skipped", 0)
		return []models.Notification{}
	}

	a.loading.Set(true)
	defer a.loading.Set(false)
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	var expiring, warnings []models.Notification
	var expiringErr, warningsErr error
	var g errgroup.Group
	g.Go(func() error {
		expiring, expiringErr = a.category(ctx, "expiring", a.backend.ExpiringNotifications, headers, group)
		return nil
	})
	g.Go(func() error {
		warnings, warningsErr = a.category(ctx, "warnings", a.backend.WarningNotifications, headers, group)
		return nil
	})
	_ = g.Wait()

	if aborted(expiringErr) && aborted(warningsErr) {
		a.log.Info("Both notification requests were cut short, keeping the current feed")
		metrics.RecordNotificationFetch("aborted", time.Since(start))
		return a.Feed()
	}

	merged := Merge(expiring, warnings, user.ID)

	a.mu.Lock()
	a.replace(merged)
	a.mu.Unlock()

	metrics.RecordNotificationFetch("fetched", time.Since(start))
	a.log.WithFields(logrus.Fields{
		"count":  len(merged),
		"unread": CountUnread(merged),
	}).Debug("Notifications fetched")
	return clone(merged)
}

type categoryFetch func(ctx context.Context, auth http.Header, group backend.GroupRef) ([]models.Notification, error)

// category runs one category request. A failure is logged and returned with an empty list.
func (a *Aggregator) category(ctx context.Context, name string, fetch categoryFetch, headers http.Header, group backend.GroupRef) ([]models.Notification, error) {
	list, err := fetch(ctx, headers, group)
	if err != nil {
		a.log.WithError(err).WithField("category", name).Warn("Failed to fetch notifications")
		metrics.RecordCategoryFailure(name)
		return nil, err
	}
	return list, nil
}

// aborted reports whether err came from a cancelled or timed out request rather than an
// answer from the backend.
func aborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// MarkAsRead records a read receipt and patches the local entry on success. On failure
// the feed is left as it was and the error is returned for reporting only.
func (a *Aggregator) MarkAsRead(ctx context.Context, id string) error {
	headers, group, err := a.requestContext()
	if err != nil {
		return err
	}

	if err := a.backend.MarkNotificationRead(ctx, headers, group, id); err != nil {
		a.log.WithError(err).WithField("notification_id", id).Warn("Failed to mark notification as read")
		metrics.RecordNotificationAction("mark_read", false)
		return err
	}
	metrics.RecordNotificationAction("mark_read", true)

	a.mu.Lock()
	defer a.mu.Unlock()
	patched := make([]models.Notification, len(a.current))
	for i, n := range a.current {
		if n.ID == id {
			n.IsRead = true
		}
		patched[i] = n
	}
	a.replace(patched)
	return nil
}

// Delete removes a notification on the backend and drops it from the local feed on success.
func (a *Aggregator) Delete(ctx context.Context, id string) error {
	headers, group, err := a.requestContext()
	if err != nil {
		return err
	}

	if err := a.backend.DeleteNotification(ctx, headers, group, id); err != nil {
		a.log.WithError(err).WithField("notification_id", id).Warn("Failed to delete notification")
		metrics.RecordNotificationAction("delete", false)
		return err
	}
	metrics.RecordNotificationAction("delete", true)

	a.mu.Lock()
	defer a.mu.Unlock()
	kept := make([]models.Notification, 0, len(a.current))
	for _, n := range a.current {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	a.replace(kept)
	return nil
}

func (a *Aggregator) requestContext() (http.Header, backend.GroupRef, error) {
	group := groupOf(a.session.CurrentUser())
	headers, err := a.session.AuthHeaders()
	if err != nil {
		return nil, group, err
	}
	if group.IsZero() {
		return nil, group, ErrNoGroup
	}
	return headers, group, nil
}

// Reset empties the feed, used when the user logs out.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replace([]models.Notification{})
}

// replace installs a new feed and its unread count. Callers hold mu.
func (a *Aggregator) replace(feed []models.Notification) {
	a.current = feed
	count := CountUnread(feed)
	a.feed.Set(clone(feed))
	a.unread.Set(count)
	metrics.SetUnreadNotifications(count)
}

func (a *Aggregator) Feed() []models.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.current)
}

func (a *Aggregator) UnreadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return CountUnread(a.current)
}

// Snapshot returns the feed and unread count as one consistent pair.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Notifications: clone(a.current), UnreadCount: CountUnread(a.current)}
}

// Latest returns the newest limit entries; a non-positive limit means DefaultLatestLimit.
func (a *Aggregator) Latest(limit int) []models.Notification {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	feed := a.Feed()
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}

func (a *Aggregator) Loading() bool {
	return a.loading.Get()
}

func (a *Aggregator) SubscribeFeed() (<-chan []models.Notification, func()) {
	return a.feed.Subscribe()
}

func (a *Aggregator) SubscribeUnread() (<-chan int, func()) {
	return a.unread.Subscribe()
}

func (a *Aggregator) SubscribeLoading() (<-chan bool, func()) {
	return a.loading.Subscribe()
}

func groupOf(user *models.User) backend.GroupRef {
	if user == nil {
		return backend.GroupRef{}
	}
	return backend.GroupRef{Name: user.GroupName, Code: user.GroupCode}
}

func clone(feed []models.Notification) []models.Notification {
	out := make([]models.Notification, len(feed))
	copy(out, feed)
	return out
}
