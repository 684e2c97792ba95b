package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarlinkco/aria/internal/bus"
	"github.com/stellarlinkco/aria/internal/config"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f wsFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, f wsFrame) {
	t.Helper()
	data, _ := json.Marshal(f)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func newWSServer(t *testing.T, cfg config.WebSocketConfig) (*WebSocketChannel, *bus.MessageBus, *httptest.Server) {
	t.Helper()
	b := bus.NewMessageBus(10)
	ch := NewWebSocketChannel(cfg, b)
	mux := http.NewServeMux()
	mux.Handle("/ws", ch)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return ch, b, srv
}

func TestWebSocketChannel_RoundTrip(t *testing.T) {
	ch, b, srv := newWSServer(t, config.WebSocketConfig{Enabled: true})
	assert.Equal(t, "websocket", ch.Name())

	conn := dialWS(t, srv, "?user=sam")
	ready := readFrame(t, conn)
	assert.Equal(t, "ready", ready.Type)
	assert.Equal(t, "sam", ready.User)

	writeFrame(t, conn, wsFrame{Type: "message", Content: "hello aria", Name: "Sam"})

	var in bus.InboundMessage
	select {
	case in = <-b.Inbound:
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
	}
	assert.Equal(t, "websocket", in.Channel)
	assert.Equal(t, "sam", in.SenderID)
	assert.Equal(t, "Sam", in.Name)
	assert.Equal(t, "hello aria", in.Content)
	assert.Equal(t, "websocket:sam", in.UserKey())

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: in.ChatID, Content: "hi Sam", Source: "fallback"}))
	reply := readFrame(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "hi Sam", reply.Content)
	assert.Equal(t, "fallback", reply.Source)
}

func TestWebSocketChannel_AnonymousUserGetsID(t *testing.T) {
	_, _, srv := newWSServer(t, config.WebSocketConfig{Enabled: true})
	conn := dialWS(t, srv, "")
	ready := readFrame(t, conn)
	assert.NotEmpty(t, ready.User)
}

func TestWebSocketChannel_IgnoresBadFrames(t *testing.T) {
	_, b, srv := newWSServer(t, config.WebSocketConfig{Enabled: true})
	conn := dialWS(t, srv, "?user=u")
	readFrame(t, conn)

	ctx := context.Background()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	writeFrame(t, conn, wsFrame{Type: "ping"})
	writeFrame(t, conn, wsFrame{Type: "message", Content: "  "})
	writeFrame(t, conn, wsFrame{Type: "message", Content: "real"})

	select {
	case in := <-b.Inbound:
		assert.Equal(t, "real", in.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
	}
}

func TestWebSocketChannel_RejectsUnlisted(t *testing.T) {
	_, _, srv := newWSServer(t, config.WebSocketConfig{Enabled: true, AllowFrom: []string{"friend"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=stranger"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func dialWithOrigin(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=alice"
	return websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
}

func TestWebSocketChannel_RejectsForeignOrigin(t *testing.T) {
	_, _, srv := newWSServer(t, config.WebSocketConfig{Enabled: true})

	_, resp, err := dialWithOrigin(t, srv, "https://evil.example")
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestWebSocketChannel_AllowsListedOrigin(t *testing.T) {
	_, _, srv := newWSServer(t, config.WebSocketConfig{Enabled: true, Origins: []string{"app.example"}})

	conn, _, err := dialWithOrigin(t, srv, "https://app.example")
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	assert.Equal(t, "ready", readFrame(t, conn).Type)
}

func TestWebSocketChannel_SendUnknownConnection(t *testing.T) {
	ch := NewWebSocketChannel(config.WebSocketConfig{}, bus.NewMessageBus(1))
	err := ch.Send(bus.OutboundMessage{ChatID: "gone", Content: "x"})
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestWebSocketChannel_StopClosesClients(t *testing.T) {
	ch, _, srv := newWSServer(t, config.WebSocketConfig{Enabled: true})
	conn := dialWS(t, srv, "?user=u")
	readFrame(t, conn)
	assert.Equal(t, 1, ch.Clients())

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, err := conn.Read(ctx)
		errCh <- err
	}()

	require.NoError(t, ch.Stop())
	assert.Equal(t, 0, ch.Clients())
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(<-errCh))
}
