package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

var ErrNoReply = errors.New("llm: no provider produced a reply")

type Step struct {
	Name   string
	Client Client
	Model  string
}

// Chain tries providers in a fixed order and returns the first non-empty
// reply. After every step has failed it retries the first step once (the
// primary provider fails transiently more often than it fails hard), then
// falls back to a canned line so the caller always has something to send.
type Chain struct {
	Steps      []Step
	RetryDelay time.Duration
	Fallbacks  []string
	Logger     *slog.Logger

	pick func(n int) int
}

const FallbackProvider = "fallback"

func (c *Chain) Generate(ctx context.Context, messages []Message, maxTokens int) (string, string, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, step := range c.Steps {
		text, err := c.tryStep(ctx, step, messages, maxTokens)
		if err != nil {
			logger.Debug("llm_step_failed", "provider", step.Name, "error", err.Error())
			continue
		}
		if text != "" {
			return text, step.Name, nil
		}
	}

	if len(c.Steps) > 0 {
		delay := c.RetryDelay
		if delay <= 0 {
			delay = 2 * time.Second
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		first := c.Steps[0]
		text, err := c.tryStep(ctx, first, messages, maxTokens)
		if err == nil && text != "" {
			logger.Info("llm_primary_retry_ok", "provider", first.Name)
			return text, first.Name, nil
		}
	}

	if len(c.Fallbacks) > 0 {
		logger.Warn("llm_all_providers_failed", "steps", len(c.Steps))
		pick := c.pick
		if pick == nil {
			pick = rand.Intn
		}
		return c.Fallbacks[pick(len(c.Fallbacks))], FallbackProvider, nil
	}
	return "", "", ErrNoReply
}

func (c *Chain) tryStep(ctx context.Context, step Step, messages []Message, maxTokens int) (string, error) {
	if step.Client == nil {
		return "", errors.New("llm: step has no client")
	}
	res, err := step.Client.Chat(ctx, Request{
		Model:     step.Model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
