package opscmd

import (
	"regexp"
	"strings"
)

// Forwarded DM header, also matched in Telegram reply quotes. The header
// may read "Mensaje:" for Spanish inbound or "Mensaje Original:" for
// translated inbound.
var forwardHeaderRe = regexp.MustCompile(`INSTAGRAM:\s*\[([^\]]+)\]\s*Mensaje`)

// usernameFromForward extracts the client username out of a forwarded
// DM text. Returns "" when the text is not a forward.
func usernameFromForward(text string) string {
	m := forwardHeaderRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(m[1]), "@")
}
