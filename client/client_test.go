package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashank8536/Campus-MarketPlace/models"
	"github.com/shashank8536/Campus-MarketPlace/realtime"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeGateway echoes every send_message back as an authoritative
// receive_message, the way the real gateway confirms a sender.
func fakeGateway(t *testing.T, sender models.UserRef) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env realtime.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Event != realtime.EventSendMessage {
				continue
			}
			var payload realtime.SendMessagePayload
			require.NoError(t, json.Unmarshal(env.Data, &payload))

			echo := realtime.ReceiveMessagePayload{
				Message: realtime.MessagePayload{
					ID:             uuid.New(),
					ConversationID: uuid.MustParse(payload.ConversationID),
					Sender:         sender,
					Content:        payload.Content,
					CreatedAt:      time.Now(),
				},
				ConversationID: uuid.MustParse(payload.ConversationID),
			}
			data, err := json.Marshal(echo)
			require.NoError(t, err)
			require.NoError(t, conn.WriteJSON(realtime.Envelope{Event: realtime.EventReceiveMessage, Data: data}))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitForUpdate(t *testing.T, updates <-chan []Message) []Message {
	t.Helper()
	select {
	case messages := <-updates:
		return messages
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}

func TestSocketSendReplacesOptimisticMessage(t *testing.T) {
	me := models.UserRef{ID: uuid.New(), Name: "alice"}
	gateway := fakeGateway(t, me)

	updates := make(chan []Message, 10)
	c := New(Options{
		SocketURL: wsURL(gateway),
		UserID:    me.ID,
		UserName:  me.Name,
		OnUpdate:  func(_ uuid.UUID, messages []Message) { updates <- messages },
	})
	require.NoError(t, c.Connect())
	defer c.Close()

	conversationID := uuid.New()
	tempID, err := c.Send(conversationID, uuid.New(), "Is this available?")
	require.NoError(t, err)
	require.NotEmpty(t, tempID)

	// First update is the optimistic render.
	timeline := waitForUpdate(t, updates)
	require.Len(t, timeline, 1)
	assert.True(t, timeline[0].Pending)
	assert.Equal(t, tempID, timeline[0].TempID)

	// The echo replaces it in place, never appends a duplicate.
	timeline = waitForUpdate(t, updates)
	require.Len(t, timeline, 1)
	assert.False(t, timeline[0].Pending)
	assert.Empty(t, timeline[0].TempID)
	assert.NotEqual(t, uuid.Nil, timeline[0].ID)
	assert.Equal(t, "Is this available?", timeline[0].Content)
}

func TestTwoSendsReconcileInOrder(t *testing.T) {
	me := models.UserRef{ID: uuid.New(), Name: "alice"}
	gateway := fakeGateway(t, me)

	updates := make(chan []Message, 10)
	c := New(Options{
		SocketURL: wsURL(gateway),
		UserID:    me.ID,
		UserName:  me.Name,
		OnUpdate:  func(_ uuid.UUID, messages []Message) { updates <- messages },
	})
	require.NoError(t, c.Connect())
	defer c.Close()

	conversationID := uuid.New()
	_, err := c.Send(conversationID, uuid.New(), "A")
	require.NoError(t, err)
	_, err = c.Send(conversationID, uuid.New(), "B")
	require.NoError(t, err)

	// Four updates: two optimistic renders, two reconciliations.
	var timeline []Message
	for i := 0; i < 4; i++ {
		timeline = waitForUpdate(t, updates)
	}
	require.Len(t, timeline, 2)
	assert.Equal(t, "A", timeline[0].Content)
	assert.Equal(t, "B", timeline[1].Content)
	assert.False(t, timeline[0].Pending)
	assert.False(t, timeline[1].Pending)
}

func TestIncomingMessageFromPeerAppends(t *testing.T) {
	me := models.UserRef{ID: uuid.New(), Name: "alice"}
	peer := models.UserRef{ID: uuid.New(), Name: "bob"}
	gateway := fakeGateway(t, peer)

	updates := make(chan []Message, 10)
	c := New(Options{
		SocketURL: wsURL(gateway),
		UserID:    me.ID,
		UserName:  me.Name,
		OnUpdate:  func(_ uuid.UUID, messages []Message) { updates <- messages },
	})
	require.NoError(t, c.Connect())
	defer c.Close()

	// The fake gateway attributes the echo to the peer, so the client must
	// treat it as an incoming message, not a confirmation of its own send.
	conversationID := uuid.New()
	_, err := c.Send(conversationID, peer.ID, "ping")
	require.NoError(t, err)

	waitForUpdate(t, updates) // optimistic render
	timeline := waitForUpdate(t, updates)
	require.Len(t, timeline, 2)
	assert.True(t, timeline[0].Pending)
	assert.Equal(t, peer.ID, timeline[1].Sender.ID)
}

func TestRESTFallbackWhenDisconnected(t *testing.T) {
	me := models.UserRef{ID: uuid.New(), Name: "alice"}
	conversationID := uuid.New()
	storedID := uuid.New()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/messages/send", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "message sent",
			"data": map[string]interface{}{
				"id":             storedID,
				"conversationId": body["conversationId"],
				"sender":         map[string]interface{}{"id": me.ID, "name": me.Name},
				"content":        body["content"],
				"createdAt":      time.Now(),
			},
		})
	}))
	t.Cleanup(api.Close)

	c := New(Options{
		BaseURL:  api.URL,
		Token:    "session-token",
		UserID:   me.ID,
		UserName: me.Name,
	})

	_, err := c.Send(conversationID, uuid.New(), "offline hello")
	require.NoError(t, err)
	assert.Equal(t, "Bearer session-token", gotAuth)

	timeline := c.Messages(conversationID)
	require.Len(t, timeline, 1)
	assert.Equal(t, storedID, timeline[0].ID)
	assert.False(t, timeline[0].Pending)
	assert.Equal(t, "offline hello", timeline[0].Content)
}

func TestFailedSendRestoresDraft(t *testing.T) {
	me := models.UserRef{ID: uuid.New(), Name: "alice"}
	conversationID := uuid.New()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": "message content is required",
		})
	}))
	t.Cleanup(api.Close)

	var failedConversation uuid.UUID
	var restoredDraft string
	c := New(Options{
		BaseURL: api.URL,
		UserID:  me.ID,
		OnSendFailed: func(conversationID uuid.UUID, draft string) {
			failedConversation = conversationID
			restoredDraft = draft
		},
	})

	_, err := c.Send(conversationID, uuid.New(), "doomed")
	require.Error(t, err)

	// The provisional message is gone and the draft came back.
	assert.Empty(t, c.Messages(conversationID))
	assert.Equal(t, conversationID, failedConversation)
	assert.Equal(t, "doomed", restoredDraft)
}
