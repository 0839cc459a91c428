package convo

import "strings"

type ScoreLabel string

const (
	LabelHot        ScoreLabel = "hot"
	LabelInterested ScoreLabel = "interested"
	LabelCold       ScoreLabel = "cold"
)

var (
	highIntentKeywords = []string{"link", "comprar", "pago", "vip", "sub", "suscribir", "video", "precio"}
	midIntentKeywords  = []string{"hermosa", "amor", "quiero", "donde", "ver", "mas"}
)

// Score rates buying intent from conversation depth plus keyword hits in
// the recent message texts. Thresholds: >=15 hot, >=5 interested.
func Score(c Conversation, recentTexts []string) (int, ScoreLabel) {
	joined := strings.ToLower(strings.Join(recentTexts, " "))

	score := 0
	for _, k := range highIntentKeywords {
		if strings.Contains(joined, k) {
			score += 5
		}
	}
	for _, k := range midIntentKeywords {
		if strings.Contains(joined, k) {
			score += 2
		}
	}
	switch {
	case c.MessageCount > 30:
		score += 5
	case c.MessageCount > 10:
		score += 2
	}

	switch {
	case score >= 15:
		return score, LabelHot
	case score >= 5:
		return score, LabelInterested
	default:
		return score, LabelCold
	}
}
