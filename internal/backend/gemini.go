package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/stellarlinkco/aria/internal/config"
	"github.com/stellarlinkco/aria/internal/logging"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/"
	geminiAPIVersion     = "v1beta"

	geminiTopK        = 40
	geminiTopP        = 0.95
	maxErrorBodyBytes = 512
)

var geminiHarmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

type GeminiOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Gemini generates replies through the Gemini API generateContent call.
type Gemini struct {
	apiKey    string
	model     string
	maxTokens int
	client    *genai.Client
	config    *genai.GenerateContentConfig
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	modelName := opts.Model
	if modelName == "" {
		modelName = config.DefaultGeminiModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultMaxTokens
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base,
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %s", logging.Redact(err.Error(), opts.APIKey))
	}

	safety := make([]*genai.SafetySetting, 0, len(geminiHarmCategories))
	for _, c := range geminiHarmCategories {
		safety = append(safety, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}

	return &Gemini{
		apiKey:    opts.APIKey,
		model:     modelName,
		maxTokens: maxTokens,
		client:    client,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(opts.Temperature)),
			TopK:            genai.Ptr(float32(geminiTopK)),
			TopP:            genai.Ptr(float32(geminiTopP)),
			MaxOutputTokens: int32(maxTokens),
			SafetySettings:  safety,
		},
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("gemini request: %w", ctxErr)
		}
		if httpErr := g.httpError(err); httpErr != nil {
			return "", httpErr
		}
		return "", fmt.Errorf("gemini request: %s", logging.Redact(err.Error(), g.apiKey))
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyReply
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return "", ErrEmptyReply
	}
	text := c.Content.Parts[0].Text
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// httpError maps an API error answer to *HTTPError, or returns nil.
func (g *Gemini) httpError(err error) *HTTPError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return nil
		}
		apiErr = *ptr
	}
	body := strings.TrimSpace(apiErr.Message)
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return &HTTPError{
		StatusCode: apiErr.Code,
		Body:       logging.Redact(body, g.apiKey),
	}
}
