// Package platform defines the surface the monitor engine needs from a
// social platform: an inbox of unanswered DMs and a way to send replies.
// Implementations wrap whatever automation channel reaches the platform.
package platform

import "context"

// Message is one unanswered inbound DM.
type Message struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	AgeLabel string `json:"age_label"`
	ThreadID string `json:"thread_id"`
}

type Sender interface {
	Send(ctx context.Context, recipientID, body string) error
}

type Inbox interface {
	Unanswered(ctx context.Context) ([]Message, error)
}
