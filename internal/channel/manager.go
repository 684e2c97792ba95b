package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/bus"
	"github.com/stellarlinkco/aria/internal/config"
)

type ChannelManager struct {
	channels  map[string]Channel
	bus       *bus.MessageBus
	logger    zerolog.Logger
	websocket *WebSocketChannel
}

func NewChannelManager(cfg config.ChannelsConfig, b *bus.MessageBus, logger zerolog.Logger) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
		logger:   logger.With().Str("component", "channel-mgr").Logger(),
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		ch.SetLogger(logger)
		m.register(ch)
	}

	if cfg.WebSocket.Enabled {
		ch := NewWebSocketChannel(cfg.WebSocket, b)
		ch.SetLogger(logger)
		m.websocket = ch
		m.register(ch)
	}

	return m, nil
}

func (m *ChannelManager) register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			m.logger.Error().Err(err).Str("channel", ch.Name()).Msg("send failed")
		}
	})
}

// WebSocket returns the websocket channel, or nil when it is disabled. The
// gateway mounts its handler on the HTTP router.
func (m *ChannelManager) WebSocket() *WebSocketChannel {
	return m.websocket
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			m.logger.Info().Str("channel", name).Msg("starting")
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

// StopAll stops every channel. Stop failures are logged, not returned.
func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		m.logger.Info().Str("channel", name).Msg("stopping")
		if err := ch.Stop(); err != nil {
			m.logger.Error().Err(err).Str("channel", name).Msg("stop failed")
		}
	}
	return nil
}

// EnabledChannels returns the channel names in sorted order.
func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
