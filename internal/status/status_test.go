package status

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/clinictrack/emgcore/internal/telemetry/events"
	"github.com/clinictrack/emgcore/internal/telemetry/metrics"
)

func TestHub_BroadcastsSessionStatusToConnectedClient(t *testing.T) {
	bus := events.NewBus(metrics.NewNoopProvider())
	hub, err := NewHub(bus)
	require.NoError(t, err)
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, bus.Publish(events.Event{
		Category: events.CategorySession,
		Type:     "processing",
		Labels:   map[string]string{"session_id": "sess-1"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), "sess-1")
	require.Contains(t, string(payload), "processing")
}

func TestHub_IgnoresNonSessionEvents(t *testing.T) {
	bus := events.NewBus(metrics.NewNoopProvider())
	hub, err := NewHub(bus)
	require.NoError(t, err)
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, bus.Publish(events.Event{Category: events.CategoryResources, Type: "noise"}))
	require.NoError(t, bus.Publish(events.Event{
		Category: events.CategorySession,
		Type:     "completed",
		Labels:   map[string]string{"session_id": "sess-2"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), "sess-2")
}
