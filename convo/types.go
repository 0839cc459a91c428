// Package convo owns the per-customer conversation records: who answered
// last, how deep the conversation is, and the sales metadata operators
// attach along the way. Records are created on first contact and never
// deleted.
package convo

import "time"

type Responder string

const (
	ResponderAI    Responder = "AI"
	ResponderHuman Responder = "HUMAN"
)

type Conversation struct {
	Username       string     `json:"username"`
	ThreadID       string     `json:"thread_id,omitempty"`
	TelegramUserID int64      `json:"telegram_user_id,omitempty"`
	LastResponder  Responder  `json:"last_responder,omitempty"`
	MessageCount   int        `json:"message_count"`
	IsLead         bool       `json:"is_lead,omitempty"`
	LeadAt         *time.Time `json:"lead_at,omitempty"`
	Note           string     `json:"note,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	RealName       string     `json:"real_name,omitempty"`
	SalesLink      string     `json:"sales_link,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
