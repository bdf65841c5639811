package relay_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-collab-server/relay"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newRelayServer(t *testing.T, options ...relay.HandlerOption) (*relay.Hub, *httptest.Server) {
	t.Helper()
	hub := relay.NewHub()
	srv := httptest.NewServer(relay.Handler(hub, options...))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	f, err := relay.NewFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, websocket.JSON.Send(conn, f))
}

func receive(t *testing.T, conn *websocket.Conn, timeout time.Duration) (relay.Frame, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var f relay.Frame
	err := websocket.JSON.Receive(conn, &f)
	return f, err
}

func TestRelay_EditReachesEveryoneButSender(t *testing.T) {
	hub, srv := newRelayServer(t)
	a, b, c := dial(t, srv, srv.URL), dial(t, srv, srv.URL), dial(t, srv, srv.URL)
	require.Eventually(t, func() bool { return hub.Count() == 3 }, 2*time.Second, 10*time.Millisecond)

	send(t, a, relay.EventEdit, relay.EditPayload{FileID: "doc1", Content: "x"})

	for _, conn := range []*websocket.Conn{b, c} {
		f, err := receive(t, conn, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, relay.EventUpdate, f.Event)
		var payload relay.EditPayload
		require.NoError(t, json.Unmarshal(f.Data, &payload))
		require.Equal(t, relay.EditPayload{FileID: "doc1", Content: "x"}, payload)

		// exactly one
		_, err = receive(t, conn, 200*time.Millisecond)
		require.Error(t, err)
	}

	_, err := receive(t, a, 200*time.Millisecond)
	require.Error(t, err, "sender must not receive its own edit")
}

func TestRelay_IgnoresBadFrames(t *testing.T) {
	hub, srv := newRelayServer(t)
	a, b := dial(t, srv, srv.URL), dial(t, srv, srv.URL)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, websocket.Message.Send(a, "not json"))
	send(t, a, "cursor", map[string]int{"line": 3})
	send(t, a, relay.EventEdit, map[string]string{"content": "no file"})
	send(t, a, relay.EventEdit, relay.EditPayload{FileID: "doc2", Content: "after"})

	f, err := receive(t, b, 2*time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"fileId":"doc2","content":"after"}`, string(f.Data))
}

func TestRelay_DisconnectUnregisters(t *testing.T) {
	hub, srv := newRelayServer(t)
	a := dial(t, srv, srv.URL)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRelay_OriginCheck(t *testing.T) {
	_, srv := newRelayServer(t, relay.WithOriginCheck(func(origin string) bool {
		return origin == "http://app.example.com"
	}))

	_, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", "http://evil.example.com")
	require.Error(t, err)

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", "http://app.example.com")
	require.NoError(t, err)
	_ = conn.Close()
}

func TestRelay_PeerLabel(t *testing.T) {
	hub, srv := newRelayServer(t, relay.WithPeerLabel(func(r *http.Request) string {
		return r.URL.Query().Get("who")
	}))

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?who=alice", "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "alice", hub.Stats()[0].Label)
}

func TestRelay_CloseAllEndsConnections(t *testing.T) {
	hub, srv := newRelayServer(t)
	a, b := dial(t, srv, srv.URL), dial(t, srv, srv.URL)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 2, hub.CloseAll())

	for _, conn := range []*websocket.Conn{a, b} {
		_, err := receive(t, conn, 2*time.Second)
		require.Error(t, err)
		var ne net.Error
		require.False(t, errors.As(err, &ne) && ne.Timeout(), "connection should be closed, not idle")
	}
	require.Zero(t, hub.Count())
}
