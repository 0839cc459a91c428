package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/aurora-ops/dmbridge/llm"
)

var langNames = map[string]string{
	"en": "inglés",
	"pt": "portugués",
	"fr": "francés",
	"de": "alemán",
	"it": "italiano",
	"ru": "ruso",
}

// LLMTranslator rewrites a reply in the client's language through a chat
// model. It reads better than machine translation for casual tone, which
// is why it is tried before the web endpoint on the outbound direction.
type LLMTranslator struct {
	Client llm.Client
	Model  string
}

func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if t == nil || t.Client == nil {
		return "", fmt.Errorf("translate: no llm client")
	}
	targetName := langNames[strings.ToLower(targetLang)]
	if targetName == "" {
		targetName = targetLang
	}
	prompt := fmt.Sprintf(
		"Traduce el siguiente mensaje del español al %s. "+
			"Mantén el tono natural y cercano; no suenes a traductor automático. "+
			"Responde SOLO con la traducción, sin explicaciones.\n\nMensaje:\n%s",
		targetName, text)

	res, err := t.Client.Chat(ctx, llm.Request{
		Model:     t.Model,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 500,
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(res.Text)
	if out == "" {
		return "", fmt.Errorf("translate: empty llm translation")
	}
	return out, nil
}
