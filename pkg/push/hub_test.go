package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(5 * time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		hub.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(func() { server.Close() })
	return hub, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// subscribeAndWait subscribes and polls until the hub sees the subscriber.
func subscribeAndWait(t *testing.T, hub *Hub, conn *websocket.Conn, channel string, want int) {
	t.Helper()
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: channel})
	msg := readJSON(t, conn)
	assert.Equal(t, "subscription.confirmed", msg["type"])

	require.Eventually(t, func() bool {
		return hub.subscriberCount(channel) >= want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubConnectionEstablished(t *testing.T) {
	_, server := setupTestHub(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
}

func TestHubPing(t *testing.T) {
	_, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestHubSendStructured(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	subscribeAndWait(t, hub, conn, ConversationChannel("c1"), 1)

	hub.SendStructured("c1", StructuredMessage{
		Text:           "Here are your invoices",
		MessageType:    MessageTypeAssistant,
		AgentName:      "billing",
		AgentCompleted: true,
		QuickReplies:   []QuickReply{{ID: "qr-1", Label: "More", Value: "more"}},
	})

	msg := readJSON(t, conn)
	assert.Equal(t, WireTypeMessage, msg["type"])
	assert.Equal(t, "c1", msg["conversation_id"])
	assert.Equal(t, "Here are your invoices", msg["text"])
	assert.Equal(t, string(MessageTypeAssistant), msg["message_type"])
	assert.Equal(t, "billing", msg["agent_name"])
	assert.Equal(t, true, msg["agent_completed"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestHubSendStreamChunk(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	subscribeAndWait(t, hub, conn, ConversationChannel("c1"), 1)

	hub.SendStreamChunk("c1", "Here ")
	hub.SendStreamChunk("c1", "are")

	first := readJSON(t, conn)
	assert.Equal(t, WireTypeStreamChunk, first["type"])
	assert.Equal(t, "Here ", first["delta"])
	second := readJSON(t, conn)
	assert.Equal(t, "are", second["delta"])
}

func TestHubBroadcastIsolation(t *testing.T) {
	hub, server := setupTestHub(t)
	c1 := connectWS(t, server)
	c2 := connectWS(t, server)
	readJSON(t, c1)
	readJSON(t, c2)

	subscribeAndWait(t, hub, c1, ConversationChannel("c1"), 1)
	subscribeAndWait(t, hub, c2, ConversationChannel("c2"), 1)

	hub.SendStructured("c1", StructuredMessage{Text: "for c1 only", MessageType: MessageTypeAssistant})

	msg := readJSON(t, c1)
	assert.Equal(t, "for c1 only", msg["text"])

	// c2 must not receive c1's message; a ping/pong round-trip proves the
	// socket is drained of anything else.
	writeJSON(t, c2, ClientMessage{Action: "ping"})
	pong := readJSON(t, c2)
	assert.Equal(t, "pong", pong["type"])
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	channel := ConversationChannel("c1")
	subscribeAndWait(t, hub, conn, channel, 1)

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: channel})
	require.Eventually(t, func() bool {
		return hub.subscriberCount(channel) == 0
	}, 2*time.Second, 10*time.Millisecond)

	hub.SendStructured("c1", StructuredMessage{Text: "dropped", MessageType: MessageTypeAssistant})

	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}
