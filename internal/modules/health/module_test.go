package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/health/service"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/pkg/metrics"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMux(t *testing.T) {
	state := service.NewState()
	store := positions.NewStore(nil)
	store.Register("BTCUSDT", models.Position{Side: models.SideBuy})
	m := metrics.New()
	m.Alerts.WithLabelValues("ignored", "duplicate").Inc()
	mux := NewMux(state, store, m)

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	state.SetWSConnected(true)
	state.TouchCycle(time.Unix(1_700_000_000, 0))
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)

	rec := get(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ready            bool  `json:"ready"`
		WSConnected      bool  `json:"wsConnected"`
		TrackedPositions int   `json:"trackedPositions"`
		LastCycleUnix    int64 `json:"lastCycleUnix"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.True(t, body.WSConnected)
	assert.Equal(t, 1, body.TrackedPositions)
	assert.Equal(t, int64(1_700_000_000), body.LastCycleUnix)

	rec = get(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `bot_alerts_total{reason="duplicate",status="ignored"} 1`))
}
