package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/backend"
	"cribb-companion/internal/logger"
	"cribb-companion/internal/models"
)

type fakeSession struct {
	user *models.User
	err  error
}

func (s *fakeSession) CurrentUser() *models.User {
	return s.user
}

func (s *fakeSession) AuthHeaders() (http.Header, error) {
	if s.err != nil {
		return nil, s.err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	return h, nil
}

type fakeBackend struct {
	mu          sync.Mutex
	expiring    []models.Notification
	warnings    []models.Notification
	expiringErr error
	warningsErr error
	markErr     error
	deleteErr   error

	// gate, when set, blocks the expiring request until closed; started is signalled first.
	gate    chan struct{}
	started chan struct{}

	listCalls   atomic.Int32
	markCalls   atomic.Int32
	deleteCalls atomic.Int32
	lastGroup   backend.GroupRef
}

func (f *fakeBackend) ExpiringNotifications(ctx context.Context, headers http.Header, group backend.GroupRef) ([]models.Notification, error) {
	f.listCalls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGroup = group
	return append([]models.Notification(nil), f.expiring...), f.expiringErr
}

func (f *fakeBackend) WarningNotifications(ctx context.Context, headers http.Header, group backend.GroupRef) ([]models.Notification, error) {
	f.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.warnings...), f.warningsErr
}

func (f *fakeBackend) MarkNotificationRead(ctx context.Context, headers http.Header, group backend.GroupRef, id string) error {
	f.markCalls.Add(1)
	return f.markErr
}

func (f *fakeBackend) DeleteNotification(ctx context.Context, headers http.Header, group backend.GroupRef, id string) error {
	f.deleteCalls.Add(1)
	return f.deleteErr
}

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func note(id string, minutes int, readBy ...string) models.Notification {
	return models.Notification{
		ID:        id,
		Type:      models.NotificationTypeExpiring,
		CreatedAt: base.Add(time.Duration(minutes) * time.Minute),
		ReadBy:    readBy,
	}
}

func member() *fakeSession {
	return &fakeSession{user: &models.User{ID: "u1", GroupName: "Apt 4", GroupCode: "ABC123"}}
}

func ids(feed []models.Notification) []string {
	out := make([]string, len(feed))
	for i, n := range feed {
		out[i] = n.ID
	}
	return out
}

func TestDeriveReadState(t *testing.T) {
	tests := []struct {
		name   string
		readBy []string
		userID string
		want   bool
	}{
		{"reader present", []string{"u2", "u1"}, "u1", true},
		{"reader absent", []string{"u2"}, "u1", false},
		{"no receipts", nil, "u1", false},
		{"anonymous viewer", []string{""}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveReadState(models.Notification{ReadBy: tt.readBy, IsRead: !tt.want}, tt.userID))
		})
	}
}

func TestMergeOrdersNewestFirst(t *testing.T) {
	expiring := []models.Notification{note("e1", 1), note("e2", 5)}
	warnings := []models.Notification{note("w1", 3), note("w2", 5)}

	feed := Merge(expiring, warnings, "u1")

	assert.Equal(t, []string{"e2", "w2", "w1", "e1"}, ids(feed))
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}
}

func TestFetchWithoutGroupSkipsNetwork(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1)}}

	for _, session := range []*fakeSession{{}, {user: &models.User{ID: "u1"}}} {
		agg := NewAggregator(fb, session, logger.Discard())
		assert.Empty(t, agg.Fetch(context.Background()))
	}
	assert.Zero(t, fb.listCalls.Load())
}

func TestFetchWithoutSessionSkipsNetwork(t *testing.T) {
	fb := &fakeBackend{}
	session := member()
	session.err = auth.ErrNotAuthenticated
	agg := NewAggregator(fb, session, logger.Discard())

	assert.Empty(t, agg.Fetch(context.Background()))
	assert.Zero(t, fb.listCalls.Load())
}

func TestFetchMergesAndDerivesReadState(t *testing.T) {
	fb := &fakeBackend{
		expiring: []models.Notification{note("e1", 1, "u1"), note("e2", 4)},
		warnings: []models.Notification{{ID: "w1", CreatedAt: base.Add(2 * time.Minute), IsRead: true}},
	}
	agg := NewAggregator(fb, member(), logger.Discard())

	feed := agg.Fetch(context.Background())

	assert.Equal(t, []string{"e2", "w1", "e1"}, ids(feed))
	assert.False(t, feed[0].IsRead)
	assert.False(t, feed[1].IsRead, "server is_read must be ignored")
	assert.True(t, feed[2].IsRead)
	assert.Equal(t, 2, agg.UnreadCount())
	assert.Equal(t, "Apt 4", fb.lastGroup.Name)
}

func TestFetchIsolatesCategoryFailures(t *testing.T) {
	fb := &fakeBackend{
		expiring:    []models.Notification{note("e1", 1)},
		warnings:    []models.Notification{note("w1", 2)},
		warningsErr: &backend.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"},
	}
	agg := NewAggregator(fb, member(), logger.Discard())

	assert.Equal(t, []string{"e1"}, ids(agg.Fetch(context.Background())))

	fb.expiringErr = backend.ErrNetwork
	assert.Empty(t, agg.Fetch(context.Background()))
	assert.Zero(t, agg.UnreadCount())
}

func TestFetchIsSingleFlight(t *testing.T) {
	fb := &fakeBackend{
		expiring: []models.Notification{note("e1", 1)},
		gate:     make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	agg := NewAggregator(fb, member(), logger.Discard())

	done := make(chan []models.Notification)
	go func() { done <- agg.Fetch(context.Background()) }()
	<-fb.started
	assert.True(t, agg.Loading())

	second := agg.Fetch(context.Background())
	assert.Empty(t, second, "coalesced fetch returns the current feed")

	close(fb.gate)
	first := <-done
	assert.Equal(t, []string{"e1"}, ids(first))
	assert.Equal(t, int32(2), fb.listCalls.Load(), "one request per category")
	assert.False(t, agg.Loading())
}

func TestFetchOutlivesCancelledCaller(t *testing.T) {
	fb := &fakeBackend{
		expiring: []models.Notification{note("e1", 1)},
		warnings: []models.Notification{note("w1", 2)},
		gate:     make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	agg := NewAggregator(fb, member(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []models.Notification)
	go func() { done <- agg.Fetch(ctx) }()
	<-fb.started
	cancel()
	close(fb.gate)

	assert.Equal(t, []string{"w1", "e1"}, ids(<-done))
	assert.Equal(t, []string{"w1", "e1"}, ids(agg.Feed()))
	assert.Equal(t, 2, agg.UnreadCount())
}

func TestFetchWithDoneContextKeepsFeed(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1)}}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())
	require.Equal(t, int32(2), fb.listCalls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb.expiring = nil

	assert.Equal(t, []string{"e1"}, ids(agg.Fetch(ctx)))
	assert.Equal(t, int32(2), fb.listCalls.Load())
	assert.Equal(t, 1, agg.UnreadCount())
}

func TestFetchKeepsFeedWhenBothRequestsAbort(t *testing.T) {
	fb := &fakeBackend{
		expiring: []models.Notification{note("e1", 1)},
		warnings: []models.Notification{note("w1", 2, "u1")},
	}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())

	fb.expiringErr = fmt.Errorf("%w: GET /api/notifications/expiring: %w", backend.ErrNetwork, context.DeadlineExceeded)
	fb.warningsErr = context.Canceled

	feed := agg.Fetch(context.Background())
	assert.Equal(t, []string{"w1", "e1"}, ids(feed))
	assert.Equal(t, 1, agg.UnreadCount())

	// One real failure means the backend answered; the other category still counts.
	fb.warningsErr = &backend.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	fb.expiringErr = nil
	assert.Equal(t, []string{"e1"}, ids(agg.Fetch(context.Background())))
}

func TestMarkAsReadPatchesLocally(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1), note("e2", 2)}}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())
	require.Equal(t, 2, agg.UnreadCount())

	require.NoError(t, agg.MarkAsRead(context.Background(), "e1"))

	snap := agg.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	for _, n := range snap.Notifications {
		assert.Equal(t, n.ID == "e1", n.IsRead)
	}
	assert.Equal(t, int32(2), fb.listCalls.Load(), "no refetch after mark-read")
}

func TestMarkAsReadFailureLeavesFeed(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1)}, markErr: errors.New("boom")}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())
	before := agg.Snapshot()

	assert.Error(t, agg.MarkAsRead(context.Background(), "e1"))
	assert.Equal(t, before, agg.Snapshot())
}

func TestDeleteRemovesLocally(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1), note("e2", 2, "u1")}}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())

	require.NoError(t, agg.Delete(context.Background(), "e1"))
	assert.Equal(t, []string{"e2"}, ids(agg.Feed()))
	assert.Equal(t, 0, agg.UnreadCount())

	fb.deleteErr = errors.New("boom")
	assert.Error(t, agg.Delete(context.Background(), "e2"))
	assert.Equal(t, []string{"e2"}, ids(agg.Feed()))
}

func TestActionsWithoutGroup(t *testing.T) {
	fb := &fakeBackend{}
	agg := NewAggregator(fb, &fakeSession{user: &models.User{ID: "u1"}}, logger.Discard())

	assert.ErrorIs(t, agg.MarkAsRead(context.Background(), "e1"), ErrNoGroup)
	assert.ErrorIs(t, agg.Delete(context.Background(), "e1"), ErrNoGroup)
	assert.Zero(t, fb.markCalls.Load())
	assert.Zero(t, fb.deleteCalls.Load())
}

// A mark-read that lands while a fetch is in flight is overwritten when that fetch
// completes with data taken before the receipt was recorded. Last write wins.
func TestFetchOverwritesConcurrentMarkRead(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1)}}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())

	fb.gate = make(chan struct{})
	fb.started = make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		agg.Fetch(context.Background())
		close(done)
	}()
	<-fb.started

	require.NoError(t, agg.MarkAsRead(context.Background(), "e1"))
	assert.Equal(t, 0, agg.UnreadCount())

	close(fb.gate)
	<-done
	assert.Equal(t, 1, agg.UnreadCount())
	assert.False(t, agg.Feed()[0].IsRead)
}

func TestLatestAndReset(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1), note("e2", 2), note("e3", 3), note("e4", 4)}}
	agg := NewAggregator(fb, member(), logger.Discard())
	agg.Fetch(context.Background())

	assert.Equal(t, []string{"e4", "e3", "e2"}, ids(agg.Latest(0)))
	assert.Equal(t, []string{"e4"}, ids(agg.Latest(1)))
	assert.Len(t, agg.Latest(10), 4)

	agg.Reset()
	assert.Empty(t, agg.Feed())
	assert.Zero(t, agg.UnreadCount())
}

func TestSubscribersSeeUpdates(t *testing.T) {
	fb := &fakeBackend{expiring: []models.Notification{note("e1", 1)}}
	agg := NewAggregator(fb, member(), logger.Discard())

	feed, cancelFeed := agg.SubscribeFeed()
	defer cancelFeed()
	unread, cancelUnread := agg.SubscribeUnread()
	defer cancelUnread()
	assert.Empty(t, <-feed)
	assert.Equal(t, 0, <-unread)

	agg.Fetch(context.Background())
	assert.Equal(t, []string{"e1"}, ids(<-feed))
	assert.Equal(t, 1, <-unread)

	require.NoError(t, agg.MarkAsRead(context.Background(), "e1"))
	assert.True(t, (<-feed)[0].IsRead)
	assert.Equal(t, 0, <-unread)
}
