// Package openrouter talks to the OpenRouter chat completions API. Free-tier
// models disappear without notice, so the client keeps a rotation list and
// moves to the next model when the current one answers 404.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aurora-ops/dmbridge/llm"
)

const attemptsPerModel = 3

type Client struct {
	BaseURL string
	APIKey  string
	// ExtraModels are tried, in order, after the requested model 404s.
	ExtraModels []string
	HTTP        *http.Client
	Logger      *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func New(baseURL, apiKey string, extraModels []string) *Client {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api"
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		ExtraModels: extraModels,
		HTTP:        &http.Client{Timeout: 45 * time.Second},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	models := dedupeModels(append([]string{req.Model}, c.ExtraModels...))
	var lastErr error

	for _, model := range models {
		for attempt := 0; attempt < attemptsPerModel; attempt++ {
			if err := ctx.Err(); err != nil {
				return llm.Result{}, err
			}
			res, status, err := c.doChat(ctx, model, req)
			if err == nil && status == http.StatusOK {
				res.Duration = time.Since(start)
				if model != req.Model {
					logger.Info("openrouter_model_rotated", "model", model)
				}
				return res, nil
			}
			if status == http.StatusNotFound {
				logger.Warn("openrouter_model_unavailable", "model", model)
				lastErr = fmt.Errorf("openrouter: model %s unavailable", model)
				break
			}
			if err != nil {
				lastErr = err
			} else {
				lastErr = fmt.Errorf("openrouter http %d", status)
			}
			logger.Debug("openrouter_attempt_failed",
				"model", model, "attempt", attempt+1, "error", lastErr.Error())
			if attempt < attemptsPerModel-1 {
				c.wait(ctx, time.Duration(1<<attempt)*time.Second)
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("openrouter: no models configured")
	}
	return llm.Result{}, lastErr
}

func (c *Client) doChat(ctx context.Context, model string, req llm.Request) (llm.Result, int, error) {
	body := chatRequest{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Result{}, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		var out chatResponse
		if json.Unmarshal(raw, &out) == nil && out.Error != nil && out.Error.Message != "" {
			return llm.Result{}, resp.StatusCode, fmt.Errorf("openrouter http %d: %s", resp.StatusCode, out.Error.Message)
		}
		return llm.Result{}, resp.StatusCode, nil
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, resp.StatusCode, fmt.Errorf("openrouter decode: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return llm.Result{}, resp.StatusCode, fmt.Errorf("openrouter: empty choices")
	}
	return llm.Result{
		Text: out.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
	}, resp.StatusCode, nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) {
	if c.sleep != nil {
		c.sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func dedupeModels(models []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(models))
	for _, raw := range models {
		model := strings.TrimSpace(raw)
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		out = append(out, model)
	}
	return out
}
