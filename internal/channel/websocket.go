package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/stellarlinkco/aria/internal/bus"
	"github.com/stellarlinkco/aria/internal/config"
)

const (
	webSocketChannelName = "websocket"
	wsWriteTimeout       = 5 * time.Second
)

// ErrUnknownConnection is returned by Send when the target connection has gone.
var ErrUnknownConnection = errors.New("websocket connection not found")

// wsFrame is the JSON frame exchanged with clients. Clients send
// {"type":"message","content":"..."}; the server answers with "ready" once
// and then one "message" frame per reply.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	User    string `json:"user,omitempty"`
	Source  string `json:"source,omitempty"`
}

type wsClient struct {
	conn   *websocket.Conn
	userID string
}

// WebSocketChannel serves chat over websockets. It has no listener of its
// own; the gateway mounts it as an http.Handler.
type WebSocketChannel struct {
	BaseChannel
	origins []string
	mu      sync.RWMutex
	clients map[string]*wsClient
}

func NewWebSocketChannel(cfg config.WebSocketConfig, b *bus.MessageBus) *WebSocketChannel {
	return &WebSocketChannel{
		BaseChannel: NewBaseChannel(webSocketChannelName, b, cfg.AllowFrom),
		origins:     cfg.Origins,
		clients:     make(map[string]*wsClient),
	}
}

func (w *WebSocketChannel) Start(context.Context) error { return nil }

// ServeHTTP upgrades the request. The user id comes from the "user" query
// parameter; anonymous connections get a fresh id.
func (w *WebSocketChannel) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		userID = uuid.NewString()
	}
	if !w.IsAllowed(userID) {
		w.logger.Warn().Str("user", userID).Msg("rejected connection")
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{OriginPatterns: w.origins})
	if err != nil {
		w.logger.Error().Err(err).Msg("websocket accept")
		return
	}

	connID := uuid.NewString()
	w.mu.Lock()
	w.clients[connID] = &wsClient{conn: conn, userID: userID}
	w.mu.Unlock()
	w.logger.Info().Str("conn", connID).Str("user", userID).Msg("client connected")

	defer func() {
		w.mu.Lock()
		delete(w.clients, connID)
		w.mu.Unlock()
		conn.CloseNow()
		w.logger.Info().Str("conn", connID).Msg("client disconnected")
	}()

	ctx := r.Context()
	if err := w.write(ctx, conn, wsFrame{Type: "ready", User: userID}); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "message" || strings.TrimSpace(frame.Content) == "" {
			continue
		}
		in := bus.InboundMessage{
			Channel:   webSocketChannelName,
			SenderID:  userID,
			ChatID:    connID,
			Name:      frame.Name,
			Content:   frame.Content,
			Timestamp: time.Now(),
		}
		if err := w.bus.PublishInbound(ctx, in); err != nil {
			return
		}
	}
}

func (w *WebSocketChannel) write(ctx context.Context, conn *websocket.Conn, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Send delivers a reply to the connection named by msg.ChatID.
func (w *WebSocketChannel) Send(msg bus.OutboundMessage) error {
	w.mu.RLock()
	c, ok := w.clients[msg.ChatID]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, msg.ChatID)
	}
	return w.write(context.Background(), c.conn, wsFrame{
		Type:    "message",
		Content: msg.Content,
		Source:  msg.Source,
	})
}

// Clients returns the number of open connections.
func (w *WebSocketChannel) Clients() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.clients)
}

func (w *WebSocketChannel) Stop() error {
	w.mu.Lock()
	clients := w.clients
	w.clients = make(map[string]*wsClient)
	w.mu.Unlock()
	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
	w.logger.Info().Msg("stopped")
	return nil
}
