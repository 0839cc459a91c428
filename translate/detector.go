// Package translate handles the two translation directions of the funnel:
// inbound client text to Spanish for the operations group, and operator or
// AI replies back to the client's language. Every failure degrades to the
// input text; a missed translation is better than a silent customer.
package translate

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detect reports the ISO 639-1 code of text, or "" when the text is too
// short or detection is unreliable (callers assume Spanish).
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < 2 {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	return code
}
