// Package dedup prevents the monitor from answering the same observed
// message twice. The fingerprint is deliberately lossy (sender + text
// prefix + length): the platform surfaces scraped text, not stable message
// IDs, so two captures of the same DM must fingerprint identically.
package dedup

import (
	"fmt"
	"strings"
)

const prefixLen = 20

// Fingerprint derives the dedup hash for one inbound message. Distinct
// long messages sharing a prefix and length collide; that trades a rare
// skipped reply for never double-replying.
func Fingerprint(username, text string) string {
	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)
	prefix := text
	if runes := []rune(text); len(runes) > prefixLen {
		prefix = string(runes[:prefixLen])
	}
	return fmt.Sprintf("%s_%s_%d", username, prefix, len([]rune(text)))
}
