package translate

import (
	"context"
	"log/slog"
	"strings"
)

type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Service bundles the translator chain. Natural (LLM) is optional and
// tried first for client-facing text; Machine is the always-present web
// endpoint fallback.
type Service struct {
	Natural Translator
	Machine Translator
	Logger  *slog.Logger
}

// ToSpanish renders inbound client text for the operations group. On any
// failure the original text comes back unchanged.
func (s *Service) ToSpanish(ctx context.Context, text string) string {
	if s == nil || s.Machine == nil {
		return text
	}
	out, err := s.Machine.Translate(ctx, text, "auto", "es")
	if err != nil {
		s.logWarn("translate_to_spanish_failed", err)
		return text
	}
	return out
}

// ForClient renders a Spanish reply in the client's recorded language.
// Empty or Spanish targets pass through untouched.
func (s *Service) ForClient(ctx context.Context, text, targetLang string) string {
	targetLang = strings.ToLower(strings.TrimSpace(targetLang))
	if s == nil || targetLang == "" || targetLang == "es" {
		return text
	}
	if s.Natural != nil {
		out, err := s.Natural.Translate(ctx, text, "es", targetLang)
		if err == nil {
			return out
		}
		s.logWarn("translate_natural_failed", err)
	}
	if s.Machine != nil {
		out, err := s.Machine.Translate(ctx, text, "es", targetLang)
		if err == nil {
			return out
		}
		s.logWarn("translate_machine_failed", err)
	}
	return text
}

func (s *Service) logWarn(msg string, err error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, "error", err.Error())
}
