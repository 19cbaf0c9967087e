package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	start := c.startTime
	c.now = func() time.Time { return start.Add(90 * time.Second) }

	h := c.Health()
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "1.2.3", h.Version)
	assert.Equal(t, "1m30s", h.Uptime)
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{name: "no checks", want: StatusHealthy},
		{
			name:   "all healthy",
			checks: map[string]Check{"schemas": Healthy("3 schemas"), "store": Healthy("")},
			want:   StatusHealthy,
		},
		{
			name:   "degraded",
			checks: map[string]Check{"schemas": Healthy(""), "cache": Degraded("breaker open")},
			want:   StatusDegraded,
		},
		{
			name: "unhealthy wins",
			checks: map[string]Check{
				"cache":   Degraded(""),
				"schemas": Unhealthy("not loaded"),
				"store":   Healthy(""),
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("")
			for name, check := range tt.checks {
				check := check
				c.RegisterCheck(name, func() Check { return check })
			}

			r := c.Readiness()
			assert.Equal(t, tt.want, r.Status)
			assert.Len(t, r.Checks, len(tt.checks))
		})
	}
}

func TestChecker_RegisterReplaces(t *testing.T) {
	t.Parallel()

	c := NewChecker("")
	c.RegisterCheck("cache", func() Check { return Unhealthy("down") })
	c.RegisterCheck("cache", func() Check { return Healthy("up") })

	r := c.Readiness()
	require.Len(t, r.Checks, 1)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "up", r.Checks["cache"].Message)
}

func TestHandlers(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev")
	c.RegisterCheck("store", func() Check { return Unhealthy("dataset missing") })

	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, StatusUnhealthy, ready.Status)
	assert.Equal(t, "dataset missing", ready.Checks["store"].Message)

	rec = httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
