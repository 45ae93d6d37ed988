package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/api/notifications/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications/n1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	body := scrape(t)
	assert.Contains(t, body, `cribb_companion_http_requests_total{method="GET",path="/api/notifications/:id",status="204"}`)
}

func TestDomainCollectors(t *testing.T) {
	RecordNotificationFetch("fetched", 20*time.Millisecond)
	RecordNotificationFetch("coalesced", 0)
	RecordCategoryFailure("warnings")
	RecordNotificationAction("mark_read", true)
	SetUnreadNotifications(4)
	RecordTransfer("success")

	body := scrape(t)
	assert.Contains(t, body, `cribb_companion_notifications_fetches_total{outcome="coalesced"}`)
	assert.Contains(t, body, `cribb_companion_notifications_category_failures_total{category="warnings"}`)
	assert.Contains(t, body, `cribb_companion_notifications_actions_total{action="mark_read",success="true"}`)
	assert.Contains(t, body, "cribb_companion_notifications_unread 4")
	assert.Contains(t, body, `cribb_companion_transfer_confirmations_total{outcome="success"}`)
}
