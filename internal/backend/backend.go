// Package backend adapts remote text generation services to a single
// prompt-in, text-out interface.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/stellarlinkco/aria/internal/config"
)

// ErrEmptyReply is returned when the service answers without usable text.
var ErrEmptyReply = errors.New("backend: empty reply")

// Generator turns a composed prompt into reply text. Implementations make a
// single attempt per call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPError is a non-2xx answer from a generation service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: http status %d: %s", e.StatusCode, e.Body)
}

// New builds the generator named by cfg.Type. It returns nil, nil when no
// credential is configured so callers reply from the fallback responder.
func New(cfg config.ProviderConfig, agent config.AgentConfig) (Generator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, nil
	}
	modelName := strings.TrimSpace(agent.Model)
	if modelName == "" {
		modelName = cfg.DefaultModel()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout * time.Second
	}
	temp := agent.Temperature

	switch cfg.Kind() {
	case config.ProviderGemini:
		g, err := NewGemini(context.Background(), GeminiOptions{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       modelName,
			Temperature: temp,
			MaxTokens:   agent.MaxTokens,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderAnthropic:
		return NewSDK(&model.AnthropicProvider{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			ModelName:   modelName,
			MaxTokens:   agent.MaxTokens,
			MaxRetries:  singleAttempt,
			Temperature: &temp,
		}, agent.MaxTokens, temp, timeout), nil
	case config.ProviderOpenAI:
		return NewSDK(&model.OpenAIProvider{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			ModelName:   modelName,
			MaxTokens:   agent.MaxTokens,
			MaxRetries:  singleAttempt,
			Temperature: &temp,
		}, agent.MaxTokens, temp, timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
