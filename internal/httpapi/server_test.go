package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/monitor/internal/alertengine"
	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
)

func newTestRouter(t *testing.T) (http.Handler, device.Registry, alert.Store) {
	t.Helper()
	reg := device.NewMemoryRegistry()
	store := alert.NewMemoryStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := cache.NewMemoryCache(0)
	eng := alertengine.New(store, reg, c, m, logger.NewDefault("httpapi_test"))

	r := NewRouter(Deps{
		Registry:    reg,
		AlertStore:  store,
		AlertEngine: eng,
		Cache:       c,
		Log:         logger.NewDefault("httpapi_test"),
	})
	return r, reg, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReturnsOK(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeviceLifecycle_CreateListDelete(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/devices/", deviceCreateRequest{Device: device.Device{IP: "10.0.0.1", Hostname: "core-sw-1", Enabled: true}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created device.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, created.ID.String(), "00000000-0000-0000-0000-000000000000")

	rec = doJSON(t, r, http.MethodGet, "/api/v1/devices/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*device.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doJSON(t, r, http.MethodDelete, "/api/v1/devices/"+created.ID.String()+"/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateDevice_RejectsMissingIP(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := doJSON(t, r, http.MethodPost, "/api/v1/devices/", deviceCreateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertRuleLifecycle_CreateList(t *testing.T) {
	r, _, store := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/alerts/rules/", alertRuleRequest{
		Name: "device down", Expression: "device_down", Severity: alert.SeverityCritical, Enabled: true, ScopeKind: alert.ScopeAll,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/alerts/rules/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []*alert.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)
	_ = store
}

func TestDashboardStats_ReflectsDeviceCounts(t *testing.T) {
	r, reg, store := newTestRouter(t)
	ctx := context.Background()

	dev := &device.Device{IP: "10.0.0.2", Enabled: true}
	require.NoError(t, reg.Create(ctx, dev))

	rule := &alert.Rule{Name: "x", Expression: "device_down", Severity: alert.SeverityMedium, Enabled: true, ScopeKind: alert.ScopeAll}
	cond, err := alert.ParseCondition(rule.Expression)
	require.NoError(t, err)
	rule.Condition = cond
	require.NoError(t, store.CreateRule(ctx, rule))

	rec := doJSON(t, r, http.MethodGet, "/api/v1/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dashboardStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Online)
}
