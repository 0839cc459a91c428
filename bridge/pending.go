package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
)

const (
	pendingFileVersion = 1
	pendingPreviewLen  = 80
)

// PendingFlag marks a sender whose message was forwarded to operations
// and is waiting for a human reply.
type PendingFlag struct {
	Since   time.Time `json:"since"`
	Preview string    `json:"preview"`
}

type pendingFile struct {
	Version int                    `json:"version"`
	Flags   map[string]PendingFlag `json:"flags"`
}

type PendingStore struct {
	path     string
	lockPath string
	mu       sync.Mutex

	now func() time.Time
}

func NewPendingStore(path, lockPath string) *PendingStore {
	return &PendingStore{path: path, lockPath: lockPath, now: time.Now}
}

func (s *PendingStore) Set(ctx context.Context, username, messageText string) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	if username == "" {
		return errors.New("bridge: username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		doc.Flags[username] = PendingFlag{
			Since:   s.now().UTC(),
			Preview: previewOf(messageText, pendingPreviewLen),
		}
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

func (s *PendingStore) Clear(ctx context.Context, username string) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		if _, ok := doc.Flags[username]; !ok {
			return nil
		}
		delete(doc.Flags, username)
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

func (s *PendingStore) Get(ctx context.Context, username string) (PendingFlag, bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return PendingFlag{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return PendingFlag{}, false, err
	}
	flag, ok := doc.Flags[normalizeUsername(username)]
	return flag, ok, nil
}

func (s *PendingStore) All(ctx context.Context) (map[string]PendingFlag, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]PendingFlag, len(doc.Flags))
	for k, v := range doc.Flags {
		out[k] = v
	}
	return out, nil
}

func (s *PendingStore) loadLocked() (pendingFile, error) {
	doc := pendingFile{Version: pendingFileVersion}
	found, err := fsstore.ReadJSON(s.path, &doc)
	if err != nil && !errors.Is(err, fsstore.ErrDecodeFailed) {
		return pendingFile{}, err
	}
	if err != nil || !found || doc.Flags == nil {
		doc.Flags = map[string]PendingFlag{}
	}
	doc.Version = pendingFileVersion
	return doc, nil
}

func previewOf(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
