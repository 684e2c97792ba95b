package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cexll/agentsdk-go/pkg/model"
)

// singleAttempt disables the SDK's own retry loop.
const singleAttempt = 1

// SDK generates through an agentsdk-go model provider.
type SDK struct {
	provider    model.Provider
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

func NewSDK(p model.Provider, maxTokens int, temperature float64, timeout time.Duration) *SDK {
	return &SDK{provider: p, maxTokens: maxTokens, temperature: temperature, timeout: timeout}
}

func (s *SDK) Generate(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	mdl, err := s.provider.Model(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve model: %w", err)
	}
	temp := s.temperature
	resp, err := mdl.Complete(ctx, model.Request{
		Messages: []model.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("model complete: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Message.Content, nil
}
