// Package ai wraps the OpenAI-compatible chat completion API used for exit
// confirmation and sentiment analysis, with a circuit breaker so repeated
// upstream failures stop generating traffic.
package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/polypilot/engine/internal/config"
	"github.com/polypilot/engine/internal/logger"
)

type Client struct {
	client  *openai.Client
	model   string
	timeout timeoutFunc
	breaker *gobreaker.CircuitBreaker
	enabled bool
	logger  *logger.Logger
}

type timeoutFunc func(context.Context) (context.Context, context.CancelFunc)

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	c := &Client{
		model:   cfg.OpenAI.Model,
		enabled: cfg.HasOpenAI(),
		logger:  log,
	}

	if !c.enabled {
		log.Info("openai not configured, running on local heuristics only")
		return c
	}

	ocfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		ocfg.BaseURL = cfg.OpenAI.BaseURL
	}
	c.client = openai.NewClientWithConfig(ocfg)

	timeout := cfg.OpenAITimeout()
	c.timeout = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, timeout)
	}

	st := gobreaker.Settings{Name: "openai"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.Timeout = timeout * 3
	c.breaker = gobreaker.NewCircuitBreaker(st)

	return c
}

// Available reports whether the inference path is configured and the breaker
// is willing to let a request through. The market scanner skips whole runs
// when this is false.
func (c *Client) Available() bool {
	return c.enabled && c.breaker.State() != gobreaker.StateOpen
}

// Complete sends one system+user prompt pair and returns the raw assistant
// text. Callers treat any error as collaborator unavailability and fall back
// to their local heuristic.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("openai not configured")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := c.timeout(ctx)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("openai API call: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}

	text := out.(string)
	c.logger.Debug("ai raw response", "length", len(text))
	return text, nil
}
