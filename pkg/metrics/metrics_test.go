package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposed(t *testing.T) {
	m := New()
	m.Reservations.WithLabelValues("created").Inc()
	m.Reservations.WithLabelValues("conflict").Add(2)
	m.SweepReleased.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reservations.WithLabelValues("conflict")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `hostel_booking_reservation_transitions_total{result="created"} 1`)
	assert.Contains(t, body, "hostel_booking_sweep_reservations_released_total 1")
}
