package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarlinkco/aria/internal/bus"
	"github.com/stellarlinkco/aria/internal/config"
	"github.com/stellarlinkco/aria/internal/engine"
	"github.com/stellarlinkco/aria/internal/persona"
	"github.com/stellarlinkco/aria/internal/store"
)

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	panic bool
	calls int
}

func (s *stubGenerator) Generate(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panic {
		panic("provider exploded")
	}
	return s.reply, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.Port = 0
	cfg.Snapshot.Dir = t.TempDir()
	return cfg
}

func newGateway(t *testing.T, cfg *config.Config, gen *stubGenerator) *Gateway {
	t.Helper()
	nop := zerolog.Nop()
	opts := Options{Store: store.NewMemoryStore(), Logger: &nop}
	if gen != nil {
		opts.Backend = gen
	}
	g, err := NewWithOptions(cfg, opts)
	require.NoError(t, err)
	return g
}

func TestNew_FallbackOnlyWithoutCredential(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	assert.False(t, g.engine.HasBackend())
	assert.Equal(t, []string{"websocket"}, g.channels.EnabledChannels())
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.APIKey = "k"
	cfg.Provider.Type = "mystery"
	nop := zerolog.Nop()
	_, err := NewWithOptions(cfg, Options{Store: store.NewMemoryStore(), Logger: &nop})
	assert.Error(t, err)
}

func TestNew_BadSnapshotSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Schedule = "whenever"
	nop := zerolog.Nop()
	_, err := NewWithOptions(cfg, Options{Store: store.NewMemoryStore(), Logger: &nop})
	assert.Error(t, err)
}

func TestNew_TelegramWithoutToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Channels.Telegram.Enabled = true
	nop := zerolog.Nop()
	_, err := NewWithOptions(cfg, Options{Store: store.NewMemoryStore(), Logger: &nop})
	assert.Error(t, err)
}

func TestHandle_GreetsOnFirstContact(t *testing.T) {
	g := newGateway(t, testConfig(t), &stubGenerator{reply: "Lovely to meet you!"})
	ctx := context.Background()
	msg := bus.InboundMessage{Channel: "telegram", SenderID: "1", Name: "Sam", Content: "hi"}

	first := g.Handle(ctx, msg)
	assert.Equal(t, persona.Default().Greeting, first.Greeting)
	assert.Equal(t, "Lovely to meet you!", first.Text)
	assert.Equal(t, engine.SourceBackend, first.Source)

	second := g.Handle(ctx, msg)
	assert.Empty(t, second.Greeting)

	p := g.memory.GetProfile(ctx, "telegram:1")
	require.NotNil(t, p)
	assert.Equal(t, "Sam", p.Name)
}

func TestHandle_PanicGivesTroubleReply(t *testing.T) {
	g := newGateway(t, testConfig(t), &stubGenerator{panic: true})
	turn := g.Handle(context.Background(), bus.InboundMessage{Channel: "http", SenderID: "u", Content: "hello"})
	assert.Equal(t, TroubleReply, turn.Text)
	assert.Equal(t, SourceError, turn.Source)

	// The per-user lock was released.
	done := make(chan struct{})
	go func() {
		g.Handle(context.Background(), bus.InboundMessage{Channel: "http", SenderID: "u", Content: "again"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second turn blocked")
	}
}

func TestHandle_BackendErrorFallsBack(t *testing.T) {
	g := newGateway(t, testConfig(t), &stubGenerator{err: errors.New("503")})
	turn := g.Handle(context.Background(), bus.InboundMessage{Channel: "http", SenderID: "u", Content: "hello"})
	assert.Equal(t, engine.SourceFallback, turn.Source)
	assert.NotEmpty(t, turn.Text)
}

func TestProcessLoop_RoutesReplies(t *testing.T) {
	g := newGateway(t, testConfig(t), &stubGenerator{reply: "hey you"})
	out := make(chan bus.OutboundMessage, 4)
	g.bus.SubscribeOutbound("test", func(m bus.OutboundMessage) { out <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.bus.DispatchOutbound(ctx)
	go g.processLoop(ctx)

	require.NoError(t, g.bus.PublishInbound(ctx, bus.InboundMessage{
		Channel: "test", SenderID: "s", ChatID: "chat-9", Content: "hello",
	}))

	var got []bus.OutboundMessage
	for len(got) < 2 {
		select {
		case m := <-out:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d outbound messages, want 2", len(got))
		}
	}
	assert.Equal(t, "greeting", got[0].Source)
	assert.Equal(t, "chat-9", got[0].ChatID)
	assert.Equal(t, "hey you", got[1].Content)
	assert.Equal(t, engine.SourceBackend, got[1].Source)
}

func TestProcess_GreetingFailureStillSendsReply(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.BufSize = 0
	g := newGateway(t, cfg, &stubGenerator{reply: "hey you"})
	var logs bytes.Buffer
	g.logger = zerolog.New(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.inflight.Add(1)
	g.process(ctx, bus.InboundMessage{Channel: "test", SenderID: "s", ChatID: "c", Content: "hello"})

	out := logs.String()
	assert.Contains(t, out, "drop greeting")
	assert.Contains(t, out, "drop outbound")
}

func TestHandle_SameUserSerialised(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Handle(ctx, bus.InboundMessage{Channel: "http", SenderID: "same", Content: "tell me about work"})
		}()
	}
	wg.Wait()

	sess := g.sessions.Get("http:same", "")
	assert.Equal(t, 20, sess.Count())
	p := g.memory.GetProfile(ctx, "http:same")
	require.NotNil(t, p)
	assert.Len(t, p.ConversationHistory, 2)
}

func TestRouter_Turn(t *testing.T) {
	g := newGateway(t, testConfig(t), &stubGenerator{reply: "hello Sam"})
	srv := httptest.NewServer(g.Router())
	defer srv.Close()

	body := `{"user":"sam","name":"Sam","message":"hi there"}`
	resp, err := http.Post(srv.URL+"/v1/turns", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "http:sam", got["user"])
	assert.Equal(t, "hello Sam", got["text"])
	assert.Equal(t, "backend", got["source"])
	assert.Equal(t, persona.Default().Greeting, got["greeting"])
	assert.Contains(t, got, "tone")
}

func TestRouter_TurnValidation(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	srv := httptest.NewServer(g.Router())
	defer srv.Close()

	for _, body := range []string{`{bad`, `{"message":"hi"}`, `{"user":"  "}`} {
		resp, err := http.Post(srv.URL+"/v1/turns", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestRouter_Profiles(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	srv := httptest.NewServer(g.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/profiles/http:nobody")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	g.Handle(context.Background(), bus.InboundMessage{Channel: "http", SenderID: "kai", Name: "Kai", Content: "hey"})

	resp, err = http.Get(srv.URL + "/v1/profiles/http:kai")
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()
	assert.Equal(t, "Kai", p["name"])

	resp, err = http.Get(srv.URL + "/v1/profiles")
	require.NoError(t, err)
	var list struct {
		Profiles []string `json:"profiles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{"http:kai"}, list.Profiles)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	srv := httptest.NewServer(g.Router())
	defer srv.Close()

	g.Handle(context.Background(), bus.InboundMessage{Channel: "http", SenderID: "m", Content: "hello"})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["backend"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "aria_turns_total")
}

func TestRun_StopsOnSignal(t *testing.T) {
	sig := make(chan os.Signal, 1)
	nop := zerolog.Nop()
	g, err := NewWithOptions(testConfig(t), Options{Store: store.NewMemoryStore(), Logger: &nop, SignalChan: sig})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	sig <- syscall.SIGTERM

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after signal")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	g.signalChan = make(chan os.Signal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
