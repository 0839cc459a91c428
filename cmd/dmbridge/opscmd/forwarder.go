package opscmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/aurora-ops/dmbridge/translate"
)

const forwardSeparator = "-------------------------"

// Forwarder posts inbound client DMs into the operations chat so a human
// can claim them by replying. Spanish inbound goes out as-is; foreign
// inbound carries the original plus the Spanish rendering.
type Forwarder struct {
	api       *telegramAPI
	chatID    int64
	translate *translate.Service
}

func NewForwarder(baseURL, token string, chatID int64, translator *translate.Service) *Forwarder {
	return &Forwarder{
		api:       newTelegramAPI(nil, baseURL, token),
		chatID:    chatID,
		translate: translator,
	}
}

func (f *Forwarder) ForwardInbound(ctx context.Context, username, text, spanishText string, msgCount int) error {
	body := formatForward(username, text, spanishText)
	if err := f.api.sendMessage(ctx, f.chatID, body, 0); err != nil {
		return fmt.Errorf("forward dm for %s: %w", username, err)
	}
	return nil
}

func formatForward(username, text, spanishText string) string {
	if spanishText != "" && spanishText != text {
		return fmt.Sprintf("📸 INSTAGRAM: [%s] Mensaje Original: [%s]\nTraducción: [%s]\n%s",
			username, text, spanishText, forwardSeparator)
	}
	return fmt.Sprintf("📸 INSTAGRAM: [%s] Mensaje: [%s]\n%s",
		username, text, forwardSeparator)
}

// sendNotice posts a plain status line to the operations chat.
func (f *Forwarder) sendNotice(ctx context.Context, text string) error {
	return f.api.sendMessage(ctx, f.chatID, strings.TrimSpace(text), 0)
}
