package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/status"
)

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return New(cfg, nil, m, logger.NewDefault("broadcaster_test"))
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_PublishCoalescesIntoSingleBatch(t *testing.T) {
	h := newTestHub(t, Config{CoalesceWindow: 20 * time.Millisecond})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	h.Publish("status_change", map[string]string{"a": "1"})
	h.Publish("status_change", map[string]string{"a": "2"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, "batch", evt.Type)

	batch, ok := evt.Payload.([]interface{})
	require.True(t, ok)
	assert.Len(t, batch, 2, "two publishes within the coalescing window must arrive as one batch of two events")
}

func TestHub_PublishTransitionEmitsStatusChangeShape(t *testing.T) {
	reg := device.NewMemoryRegistry()
	dev := &device.Device{ID: uuid.New(), IP: "10.1.1.5", Hostname: "edge-5"}
	require.NoError(t, reg.Create(context.Background(), dev))

	h := New(Config{CoalesceWindow: 20 * time.Millisecond}, reg, metrics.NewWithRegistry(prometheus.NewRegistry()), logger.NewDefault("broadcaster_test"))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	h.PublishTransition(context.Background(), status.Transition{
		DeviceID:  dev.ID,
		From:      status.StatusUP,
		To:        status.StatusDown,
		Timestamp: time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded statusChangeMessage
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, "status_change", decoded.Type)
	require.Len(t, decoded.Changes, 1)
	assert.Equal(t, dev.ID, decoded.Changes[0].DeviceID)
	assert.Equal(t, dev.IP, decoded.Changes[0].IP)
	assert.Equal(t, dev.Hostname, decoded.Changes[0].Hostname)
	assert.Equal(t, string(status.StatusUP), decoded.Changes[0].OldStatus)
	assert.Equal(t, string(status.StatusDown), decoded.Changes[0].NewStatus)
}

func TestHub_ServeHTTPRejectsOverHandshakeLimit(t *testing.T) {
	h := newTestHub(t, Config{HandshakesPerMin: 1})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHub_ClientRemovedAfterConnectionClose(t *testing.T) {
	h := newTestHub(t, Config{})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client was never removed from hub after connection close")
}
