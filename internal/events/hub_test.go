package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raybox-panel/internal/job"
	"raybox-panel/internal/monitor"
)

// dialHub connects a real websocket client through an httptest server that
// registers the server side with the hub.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readEvent(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHubBroadcastsJobUpdates(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	client := dialHub(t, hub)

	hub.JobUpdated(&job.Record{ID: "bracket", Status: job.StatusInProgress, Progress: 40})

	msg := readEvent(t, client)
	assert.Equal(t, "job_update", msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bracket", data["id"])
	assert.Equal(t, float64(40), data["progress"])
}

func TestHubBroadcastsMachineState(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	client := dialHub(t, hub)

	hub.MachineState(monitor.MachineState{SysState: 8, Label: "cutting", CutPercent: 12})

	msg := readEvent(t, client)
	assert.Equal(t, "machine_state", msg.Type)

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cutting", data["label"])
}

func TestHubBroadcastsMonitorChanges(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	client := dialHub(t, hub)

	hub.MonitorChanged(monitor.Status{Running: true, MachineIP: "10.0.0.5"})

	msg := readEvent(t, client)
	assert.Equal(t, "monitor", msg.Type)
}

func TestHubSendWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	// No subscribers; events are queued or dropped, never blocking.
	for i := 0; i < 200; i++ {
		hub.JobUpdated(&job.Record{ID: "a"})
	}
}
