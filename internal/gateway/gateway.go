// Package gateway wires the companion together and runs it as a service.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/backend"
	"github.com/stellarlinkco/aria/internal/bus"
	"github.com/stellarlinkco/aria/internal/channel"
	"github.com/stellarlinkco/aria/internal/config"
	"github.com/stellarlinkco/aria/internal/cron"
	"github.com/stellarlinkco/aria/internal/engine"
	"github.com/stellarlinkco/aria/internal/logging"
	"github.com/stellarlinkco/aria/internal/memory"
	"github.com/stellarlinkco/aria/internal/metrics"
	"github.com/stellarlinkco/aria/internal/persona"
	"github.com/stellarlinkco/aria/internal/store"
)

const (
	// TroubleReply is sent when a turn fails outright.
	TroubleReply = "I'm sorry, I'm having trouble connecting right now. Could you try again in a moment?"
	// SourceError marks a TroubleReply.
	SourceError = "error"

	httpChannelName = "http"
	shutdownTimeout = 5 * time.Second
)

// Options overrides collaborators, mostly for tests.
type Options struct {
	Store      store.Store
	Backend    backend.Generator
	Logger     *zerolog.Logger
	Registry   *prometheus.Registry
	SignalChan chan os.Signal
}

type Gateway struct {
	cfg      *config.Config
	logger   zerolog.Logger
	bus      *bus.MessageBus
	store    store.Store
	memory   *memory.Service
	engine   *engine.Engine
	sessions *engine.Sessions
	locks    *memory.KeyedMutex
	channels *channel.ChannelManager
	cron     *cron.Service
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	server   *http.Server

	inflight   sync.WaitGroup
	signalChan chan os.Signal
}

// Turn is the result of handling one inbound message. Greeting is set on a
// user's first contact.
type Turn struct {
	engine.Reply
	Greeting string `json:"greeting,omitempty"`
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		sessions:   engine.NewSessions(),
		locks:      memory.NewKeyedMutex(),
		signalChan: opts.SignalChan,
	}

	if opts.Logger != nil {
		g.logger = *opts.Logger
	} else {
		g.logger = logging.New(cfg.Log, os.Stderr,
			cfg.Provider.APIKey, cfg.Channels.Telegram.Token, cfg.Store.Redis.Password)
	}
	log := logging.Component(g.logger, "gateway")

	g.registry = opts.Registry
	if g.registry == nil {
		g.registry = prometheus.NewRegistry()
	}
	g.metrics = metrics.New(g.registry)

	g.bus = bus.NewMessageBus(cfg.Gateway.BufSize)

	g.store = opts.Store
	if g.store == nil {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open profile store: %w", err)
		}
		g.store = st
	}

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.PersonaPath).Msg("persona load failed, using default")
	}

	gen := opts.Backend
	if gen == nil {
		gen, err = backend.New(cfg.Provider, cfg.Agent)
		if err != nil {
			g.store.Close()
			return nil, fmt.Errorf("create backend: %w", err)
		}
	}
	if gen == nil {
		log.Info().Msg("no provider credential, replies come from the fallback responder")
	}

	g.memory = memory.NewService(g.store, memory.WithLogger(logging.Component(g.logger, "memory")))
	g.engine = engine.New(g.memory,
		engine.WithPersona(p),
		engine.WithBackend(gen),
		engine.WithMetrics(g.metrics),
		engine.WithLogger(logging.Component(g.logger, "engine")),
	)

	g.channels, err = channel.NewChannelManager(cfg.Channels, g.bus, g.logger)
	if err != nil {
		g.store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}

	g.cron = cron.NewService(g.logger)
	if cfg.Snapshot.Enabled {
		snap := cron.NewSnapshotter(g.memory, cfg.Snapshot.Dir)
		if err := g.cron.AddJob(cron.SnapshotJobName, cfg.Snapshot.Schedule, snap.Job()); err != nil {
			g.store.Close()
			return nil, fmt.Errorf("schedule snapshot: %w", err)
		}
	}

	return g, nil
}

// Handle runs one turn. Turns for the same user are serialised; a panic in
// the turn yields TroubleReply.
func (g *Gateway) Handle(ctx context.Context, msg bus.InboundMessage) (turn Turn) {
	key := msg.UserKey()
	unlock := g.locks.Lock(key)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("user", key).Msg("turn panicked")
			turn = Turn{Reply: engine.Reply{Text: TroubleReply, Source: SourceError}}
		}
	}()

	if g.memory.GetProfile(ctx, key) == nil {
		turn.Greeting = g.engine.Persona().Greeting
	}
	sess := g.sessions.Get(key, msg.Name)
	turn.Reply = g.engine.HandleTurn(ctx, sess, msg.Content)
	g.metrics.SetSessions(g.sessions.Len())
	return turn
}

func (g *Gateway) process(ctx context.Context, msg bus.InboundMessage) {
	defer g.inflight.Done()

	g.logger.Debug().Str("channel", msg.Channel).Str("sender", msg.SenderID).Msg("inbound")
	turn := g.Handle(ctx, msg)

	out := bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID}
	if turn.Greeting != "" {
		greet := out
		greet.Content = turn.Greeting
		greet.Source = "greeting"
		if err := g.bus.PublishOutbound(ctx, greet); err != nil {
			g.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop greeting")
		}
	}
	out.Content = turn.Text
	out.Source = turn.Source
	if err := g.bus.PublishOutbound(ctx, out); err != nil {
		g.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop outbound")
	}
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.inflight.Add(1)
			go g.process(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// Addr is the HTTP listen address.
func (g *Gateway) Addr() string {
	return net.JoinHostPort(g.cfg.Gateway.Host, strconv.Itoa(g.cfg.Gateway.Port))
}

// Run serves until ctx ends or a SIGINT/SIGTERM arrives.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info().Strs("channels", g.channels.EnabledChannels()).Msg("channels started")

	if err := g.cron.Start(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("cron start")
	}

	g.server = &http.Server{Addr: g.Addr(), Handler: g.Router()}
	serveErr := make(chan error, 1)
	go func() {
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	go g.processLoop(ctx)
	g.logger.Info().Str("addr", g.Addr()).Msg("gateway running")

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	var runErr error
	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	g.logger.Info().Msg("shutting down")
	cancel()
	if err := g.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (g *Gateway) Shutdown() error {
	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("http shutdown")
		}
	}
	_ = g.channels.StopAll()
	g.cron.Stop()
	g.inflight.Wait()
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close profile store: %w", err)
	}
	g.logger.Info().Msg("shutdown complete")
	return nil
}
