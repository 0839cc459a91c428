// Package agestr parses the relative-age labels the platform attaches to
// inbound messages ("2 h", "5 min", "3d", "2 sem") into hours.
package agestr

import (
	"strconv"
	"strings"
	"unicode"
)

// Hours converts an age label to hours. Spanish and English unit spellings
// are both accepted. Labels that cannot be parsed report 0 so callers treat
// the message as fresh rather than dropping it.
func Hours(label string) float64 {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return 0
	}
	switch s {
	case "ahora", "now", "just now", "justo ahora":
		return 0
	}

	var digits strings.Builder
	rest := ""
	for i, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
			continue
		}
		rest = strings.TrimSpace(s[i:])
		break
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0
	}

	switch {
	case strings.HasPrefix(rest, "min"), rest == "m":
		return n / 60
	case strings.HasPrefix(rest, "h"):
		return n
	case strings.HasPrefix(rest, "d"):
		return n * 24
	case strings.HasPrefix(rest, "sem"), strings.HasPrefix(rest, "w"):
		return n * 24 * 7
	}
	return 0
}
