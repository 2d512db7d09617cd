package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/alunos", 200, time.Millisecond)
		m.IncEvent("student_created")
		m.timeQuery("students_list")()
	})
}

func TestMetricsServiceExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/alunos", 200, 10*time.Millisecond)
	m.IncEvent("attendance_marked")
	m.IncEvent("attendance_marked")
	m.timeQuery("attendance_list_all")()

	body := scrape(t, m)
	assert.Contains(t, body, `presenca_domain_events_total{event="attendance_marked"} 2`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/alunos",status="200"} 1`)
	assert.Contains(t, body, `db_query_duration_seconds_count{query="attendance_list_all"} 1`)
}

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
