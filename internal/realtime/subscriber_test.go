package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomServer struct {
	actions chan action
	conns   chan *websocket.Conn
}

func newRoomServer(t *testing.T) (*roomServer, string) {
	t.Helper()
	rs := &roomServer{actions: make(chan action, 16), conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.conns <- conn
		for {
			var msg action
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			rs.actions <- msg
		}
	}))
	t.Cleanup(server.Close)

	return rs, "ws" + strings.TrimPrefix(server.URL, "http")
}

func (rs *roomServer) nextAction(t *testing.T) action {
	t.Helper()
	select {
	case msg := <-rs.actions:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client action")
		return action{}
	}
}

func (rs *roomServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-rs.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscriptionJoinsRoomAndDeliversEvents(t *testing.T) {
	rs, url := newRoomServer(t)

	sub := Subscribe(context.Background(), url, "article-1", Options{Logger: zerolog.Nop()})
	defer sub.Close()

	conn := rs.nextConn(t)
	assert.Equal(t, action{Action: actionJoinRoom, Payload: "article-1"}, rs.nextAction(t))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"comment_deleted","payload":{"id":"c1"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"comment_restored","payload":{"id":"c1"}}`)))

	first := nextEvent(t, sub)
	assert.Equal(t, EventCommentDeleted, first.Type)
	assert.JSONEq(t, `{"id":"c1"}`, string(first.Payload))
	assert.Equal(t, EventCommentRestored, nextEvent(t, sub).Type)
}

func TestSubscriptionRejoinsAfterReconnect(t *testing.T) {
	rs, url := newRoomServer(t)

	sub := Subscribe(context.Background(), url, "article-2", Options{
		Logger:  zerolog.Nop(),
		Backoff: func(int) time.Duration { return 10 * time.Millisecond },
	})
	defer sub.Close()
	assert.Equal(t, "article-2", sub.Room())

	first := rs.nextConn(t)
	assert.Equal(t, actionJoinRoom, rs.nextAction(t).Action)
	require.NoError(t, first.Close())

	second := rs.nextConn(t)
	assert.Equal(t, action{Action: actionJoinRoom, Payload: "article-2"}, rs.nextAction(t))

	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_comment","payload":{"id":"c2"}}`)))
	assert.Equal(t, EventNewComment, nextEvent(t, sub).Type)
}

func TestSubscriptionCloseLeavesRoom(t *testing.T) {
	rs, url := newRoomServer(t)

	sub := Subscribe(context.Background(), url, "article-3", Options{Logger: zerolog.Nop()})
	rs.nextConn(t)
	rs.nextAction(t)

	sub.Close()

	assert.Equal(t, action{Action: actionLeaveRoom, Payload: "article-3"}, rs.nextAction(t))
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 16*time.Second, Backoff(4))
	assert.Equal(t, 30*time.Second, Backoff(5))
	assert.Equal(t, 30*time.Second, Backoff(40))
}
