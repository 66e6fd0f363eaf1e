// Package gemini adapts the Google GenAI SDK for scoring, tailoring and
// outreach generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"

	jsonMIMEType    = "application/json"
	jsonTemperature = float32(0.1)

	defaultRetryDelay = time.Second
	// Quota errors asking for a longer pause than this are not worth waiting out.
	maxQuotaDelay = 30 * time.Second
)

// sleep is stubbed in tests.
var sleep = time.Sleep

var quotaDelayPattern = regexp.MustCompile(`retry after (\d+(?:\.\d+)?) seconds`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	client *genai.Client
}

func (c *genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.client.Chats.Create(ctx, model, config, history)
}

// Generator wraps the Google GenAI client with retries and plain string
// in/out. Each request runs in a fresh single-turn chat.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger

	// MaxOutputTokens caps the response size when set above zero.
	MaxOutputTokens int32
}

// NewGenerator creates a Generator for the Gemini API backend. maxRetries is
// the total number of attempts per request, not the number of retries after
// the first failure.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:      &genaiChats{client: client},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// WithModel derives a Generator that targets a different model and token cap
// but shares the underlying client connection. The scoring, tailoring and
// outreach agents each get their own derivation.
func (g *Generator) WithModel(model string, maxOutputTokens int32) *Generator {
	derived := *g
	if model = strings.TrimSpace(model); model != "" {
		derived.model = model
	}
	derived.MaxOutputTokens = maxOutputTokens

	return &derived
}

// GenerateContent sends one message under the given system instruction and
// returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	return g.generate(ctx, g.buildConfig(system), message)
}

// GenerateJSON is GenerateContent with the response constrained to JSON and a
// low temperature, for responses that get parsed rather than read.
func (g *Generator) GenerateJSON(ctx context.Context, system, message string) (string, error) {
	config := g.buildConfig(system)
	config.ResponseMIMEType = jsonMIMEType
	temperature := jsonTemperature
	config.Temperature = &temperature

	return g.generate(ctx, config, message)
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) buildConfig(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	if g.MaxOutputTokens > 0 {
		config.MaxOutputTokens = g.MaxOutputTokens
	}

	return config
}

func (g *Generator) generate(ctx context.Context, config *genai.GenerateContentConfig, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	attempts := g.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return "", fmt.Errorf("create gemini chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err == nil {
			return collectText(resp)
		}

		lastErr = err

		delay, retryable := retryDelay(err)
		if !retryable || attempt == attempts {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if waitErr := waitFor(ctx, delay); waitErr != nil {
			break
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

// waitFor pauses between attempts without outliving the request context.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// retryDelay reports whether an error is worth another attempt and how long
// to wait before it. Server errors get a fixed short delay. Quota errors are
// retried only when the API names a wait we can afford.
func retryDelay(err error) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	if apiErr.Code >= http.StatusInternalServerError {
		return defaultRetryDelay, true
	}

	if apiErr.Code == http.StatusTooManyRequests {
		match := quotaDelayPattern.FindStringSubmatch(strings.ToLower(apiErr.Message))
		if match == nil {
			return 0, false
		}

		seconds, parseErr := strconv.ParseFloat(match[1], 64)
		if parseErr != nil {
			return 0, false
		}

		delay := time.Duration(seconds * float64(time.Second))
		if delay <= 0 || delay > maxQuotaDelay {
			return 0, false
		}

		return delay, true
	}

	return 0, false
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
