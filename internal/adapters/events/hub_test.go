package events

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.EventPublisher = (*Hub)(nil)

func newTestHub(buffer int) *Hub {
	return NewHub(HubConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Buffer: buffer,
	})
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	return conn
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := newTestHub(0)
	conn := dial(t, hub)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	err := hub.Publish(context.Background(), ports.Event{
		Type: ports.EventQuotesSynced,
		At:   at,
		Data: map[string]int{"total": 3},
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got struct {
		Type string         `json:"type"`
		At   time.Time      `json:"at"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, "synced", got.Type)
	assert.True(t, at.Equal(got.At))
	assert.Equal(t, 3, got.Data["total"])
}

func TestHub_ClientDisconnectIsNoticed(t *testing.T) {
	hub := newTestHub(0)
	conn := dial(t, hub)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClients(t *testing.T) {
	hub := newTestHub(1)

	// A client with no writer goroutine never drains its buffer.
	slow := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.add(slow)

	ctx := context.Background()

	require.NoError(t, hub.Publish(ctx, ports.Event{Type: ports.EventQuoteAdded}))
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, hub.Publish(ctx, ports.Event{Type: ports.EventQuoteAdded}))
	assert.Equal(t, 0, hub.Clients())

	select {
	case <-slow.done:
	default:
		t.Fatal("slow client was not closed")
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := newTestHub(0)

	assert.NoError(t, hub.Publish(context.Background(), ports.Event{Type: ports.EventCategorySelected, Data: "Life"}))
}

func TestHub_PublishUnencodableData(t *testing.T) {
	hub := newTestHub(0)

	err := hub.Publish(context.Background(), ports.Event{Type: ports.EventQuoteAdded, Data: make(chan int)})

	assert.Error(t, err)
}

func TestHub_Close(t *testing.T) {
	hub := newTestHub(0)
	conn := dial(t, hub)

	hub.Close()

	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
