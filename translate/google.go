package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleClient calls the keyless gtx web endpoint. It is the workhorse
// translator; no credentials, no quota knobs, occasionally throttled.
type GoogleClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewGoogleClient() *GoogleClient {
	return &GoogleClient{
		BaseURL: "https://translate.googleapis.com",
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *GoogleClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("translate: empty text")
	}
	if sourceLang == "" {
		sourceLang = "auto"
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", normalizeLang(sourceLang))
	q.Set("tl", normalizeLang(targetLang))
	q.Set("dt", "t")
	q.Set("q", text)

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/translate_a/single?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate http %d", resp.StatusCode)
	}

	// Response shape: [[["translated","source",...], ...], ...]
	var payload []any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("translate decode: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}
	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("translate: unexpected response shape")
	}
	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("translate: empty translation")
	}
	return out, nil
}

func normalizeLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "zh", "zh-cn":
		return "zh-CN"
	case "pt-br":
		return "pt"
	default:
		return strings.ToLower(strings.TrimSpace(lang))
	}
}
