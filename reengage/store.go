// Package reengage sends the one-time outreach to conversations that went
// quiet inside a bounded age window. The send-log is the guard: once a
// username has a record, that person is never approached again.
package reengage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
)

const (
	logFileVersion = 1
	previewLen     = 80

	// defaultEpoch tags records so a future policy can expire by epoch
	// without a migration. The guard itself is permanent today.
	defaultEpoch = 1
)

type Record struct {
	SentAt         time.Time `json:"sent_at"`
	MessagePreview string    `json:"message_preview"`
	Epoch          int       `json:"epoch"`
}

type logFile struct {
	Version int               `json:"version"`
	Sent    map[string]Record `json:"sent"`
}

type Store struct {
	path     string
	lockPath string
	mu       sync.Mutex

	now func() time.Time
}

func NewStore(path, lockPath string) *Store {
	return &Store{path: path, lockPath: lockPath, now: time.Now}
}

func (s *Store) Has(ctx context.Context, username string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	_, ok := doc.Sent[normalizeUsername(username)]
	return ok, nil
}

func (s *Store) Record(ctx context.Context, username, messageText string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	if username == "" {
		return errors.New("reengage: username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		if _, ok := doc.Sent[username]; ok {
			return nil
		}
		preview := messageText
		if runes := []rune(messageText); len(runes) > previewLen {
			preview = string(runes[:previewLen])
		}
		doc.Sent[username] = Record{
			SentAt:         s.now().UTC(),
			MessagePreview: preview,
			Epoch:          defaultEpoch,
		}
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

func (s *Store) All(ctx context.Context) (map[string]Record, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(doc.Sent))
	for k, v := range doc.Sent {
		out[k] = v
	}
	return out, nil
}

func (s *Store) loadLocked() (logFile, error) {
	doc := logFile{Version: logFileVersion}
	found, err := fsstore.ReadJSON(s.path, &doc)
	if err != nil && !errors.Is(err, fsstore.ErrDecodeFailed) {
		return logFile{}, err
	}
	if err != nil || !found || doc.Sent == nil {
		doc.Sent = map[string]Record{}
	}
	doc.Version = logFileVersion
	return doc, nil
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
