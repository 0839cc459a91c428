package convo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
)

const conversationsFileVersion = 1

type conversationsFile struct {
	Version       int                     `json:"version"`
	Conversations map[string]Conversation `json:"conversations"`
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

func (s *Store) Get(ctx context.Context, username string) (Conversation, bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Conversation{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return Conversation{}, false, err
	}
	item, ok := doc.Conversations[normalizeUsername(username)]
	return item, ok, nil
}

func (s *Store) All(ctx context.Context) ([]Conversation, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(doc.Conversations))
	for _, item := range doc.Conversations {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// RecordInbound bumps the message counter for username, creating the
// record on first contact. The returned conversation reflects the update.
func (s *Store) RecordInbound(ctx context.Context, username, threadID string) (Conversation, error) {
	var updated Conversation
	err := s.update(ctx, username, func(c *Conversation) {
		c.MessageCount++
		if strings.TrimSpace(threadID) != "" {
			c.ThreadID = strings.TrimSpace(threadID)
		}
		updated = *c
	})
	return updated, err
}

func (s *Store) SetLastResponder(ctx context.Context, username string, responder Responder) error {
	switch responder {
	case ResponderAI, ResponderHuman:
	default:
		return fmt.Errorf("convo: unknown responder %q", responder)
	}
	return s.update(ctx, username, func(c *Conversation) {
		c.LastResponder = responder
	})
}

func (s *Store) SetTelegramUserID(ctx context.Context, username string, id int64) error {
	return s.update(ctx, username, func(c *Conversation) {
		c.TelegramUserID = id
	})
}

func (s *Store) SetNote(ctx context.Context, username, note string) error {
	return s.update(ctx, username, func(c *Conversation) {
		c.Note = strings.TrimSpace(note)
	})
}

func (s *Store) SetPhone(ctx context.Context, username, phone string) error {
	return s.update(ctx, username, func(c *Conversation) {
		c.Phone = strings.TrimSpace(phone)
	})
}

func (s *Store) SetRealName(ctx context.Context, username, name string) error {
	return s.update(ctx, username, func(c *Conversation) {
		c.RealName = strings.TrimSpace(name)
	})
}

func (s *Store) SetSalesLink(ctx context.Context, username, link string) error {
	return s.update(ctx, username, func(c *Conversation) {
		c.SalesLink = strings.TrimSpace(link)
	})
}

// MarkLead flags username as a qualified lead. The first marking wins;
// LeadAt is never moved forward.
func (s *Store) MarkLead(ctx context.Context, username string) error {
	return s.update(ctx, username, func(c *Conversation) {
		if c.IsLead {
			return
		}
		c.IsLead = true
		at := s.now().UTC()
		c.LeadAt = &at
	})
}

func (s *Store) update(ctx context.Context, username string, mutate func(*Conversation)) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	if username == "" {
		return fmt.Errorf("convo: username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		item := doc.Conversations[username]
		item.Username = username
		mutate(&item)
		item.UpdatedAt = s.now().UTC()
		doc.Conversations[username] = item
		doc.Version = conversationsFileVersion
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

func (s *Store) loadLocked() (conversationsFile, error) {
	doc := conversationsFile{Version: conversationsFileVersion}
	found, err := fsstore.ReadJSON(s.path, &doc)
	if err != nil && !errors.Is(err, fsstore.ErrDecodeFailed) {
		return conversationsFile{}, err
	}
	if err != nil || !found || doc.Conversations == nil {
		doc.Conversations = map[string]Conversation{}
	}
	return doc, nil
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
