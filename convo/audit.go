package convo

import (
	"strings"
	"time"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
	"github.com/google/uuid"
)

const auditPreviewLen = 80

type AuditEvent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Responder Responder `json:"responder"`
	Provider  string    `json:"provider,omitempty"`
	Preview   string    `json:"preview"`
	At        time.Time `json:"at"`
}

// Audit is the append-only trail of who answered each inbound message.
type Audit struct {
	journal *fsstore.JournalWriter
	now     func() time.Time
}

func NewAudit(path string) (*Audit, error) {
	journal, err := fsstore.NewJournalWriter(path, 0, fsstore.FileOptions{})
	if err != nil {
		return nil, err
	}
	return &Audit{journal: journal, now: time.Now}, nil
}

func (a *Audit) RecordDecision(username string, responder Responder, provider, text string) error {
	if a == nil || a.journal == nil {
		return nil
	}
	return a.journal.Append(AuditEvent{
		ID:        uuid.NewString(),
		Username:  normalizeUsername(username),
		Responder: responder,
		Provider:  provider,
		Preview:   Preview(text, auditPreviewLen),
		At:        a.now().UTC(),
	})
}

func (a *Audit) Close() error {
	if a == nil {
		return nil
	}
	return a.journal.Close()
}

// Preview truncates text to at most n runes for log and flag records.
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
