package reengage

import (
	"context"
	"strings"

	"github.com/aurora-ops/dmbridge/translate"
)

type Templates struct {
	Spanish      string
	English      string
	WhatsAppLink string
	Translate    *translate.Service
}

const (
	defaultSpanish = "hola amor, ¡perdóname! tenía esto colapsado 🙈 escríbeme mejor por WhatsApp y te cuento 🎁"
	defaultEnglish = "Hey! So sorry, my inbox was crazy and I missed your message 🙈 Better text me on WhatsApp 💕"
)

// Compose picks the outreach text for the client's language (Spanish
// default, English template for English, translated Spanish template for
// anything else) and makes sure the WhatsApp link rides along.
func (t Templates) Compose(ctx context.Context, clientLang string) string {
	es := t.Spanish
	if strings.TrimSpace(es) == "" {
		es = defaultSpanish
	}
	en := t.English
	if strings.TrimSpace(en) == "" {
		en = defaultEnglish
	}

	lang := strings.ToLower(strings.TrimSpace(clientLang))
	var msg string
	switch lang {
	case "", "es", "spa":
		lang = "es"
		msg = es
	case "en", "eng":
		lang = "en"
		msg = en
	default:
		msg = es
		if t.Translate != nil {
			msg = t.Translate.ForClient(ctx, es, lang)
		}
	}

	link := strings.TrimSpace(t.WhatsAppLink)
	if link != "" && !strings.Contains(msg, link) && !strings.Contains(msg, "wa.me") {
		if lang == "en" {
			msg += "\n\nMy WhatsApp: " + link + ", text me there and I'll reply 💕"
		} else {
			msg += "\n\nMe escribes al WhatsApp " + link + " y ahí te respondo mejor 😘"
		}
	}
	return msg
}
