package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingTransitions.WithLabelValues("accepted", "provider"))
	RecordBookingTransition("accepted", "provider")
	if got := testutil.ToFloat64(bookingTransitions.WithLabelValues("accepted", "provider")); got != before+1 {
		t.Fatalf("transitions = %v, want %v", got, before+1)
	}

	RecordNotifications("like", 0)
	RecordNotifications("new_post", 3)
	if got := testutil.ToFloat64(notificationsSent.WithLabelValues("new_post")); got < 3 {
		t.Fatalf("notifications = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordHTTPRequest("get", "/api/v1/feed", "200", 10*time.Millisecond)
	RecordWebhookEvent("paid")
	RecordNearbyQuery("users", false, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`letsbefriends_http_requests_total{method="GET",path="/api/v1/feed",status="200"}`,
		`letsbefriends_payments_webhook_events_total{outcome="paid"}`,
		`letsbefriends_discovery_nearby_queries_total{cache="miss",kind="users"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
