package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
)

const languagesFileVersion = 1

type languagesFile struct {
	Version   int               `json:"version"`
	Languages map[string]string `json:"languages"`
}

// LanguageStore remembers which clients write in a language other than
// Spanish so outbound replies can be translated back. Spanish is the
// default and is never recorded.
type LanguageStore struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

func NewLanguageStore(path, lockPath string) *LanguageStore {
	return &LanguageStore{path: path, lockPath: lockPath}
}

func (s *LanguageStore) Set(ctx context.Context, username, lang string) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	lang = strings.ToLower(strings.TrimSpace(lang))
	if username == "" || lang == "" || lang == "es" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		if doc.Languages[username] == lang {
			return nil
		}
		doc.Languages[username] = lang
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

// Get reports the recorded language for username; ok is false when the
// client writes Spanish (or was never seen).
func (s *LanguageStore) Get(ctx context.Context, username string) (string, bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	lang, ok := doc.Languages[normalizeUsername(username)]
	return lang, ok, nil
}

func (s *LanguageStore) loadLocked() (languagesFile, error) {
	doc := languagesFile{Version: languagesFileVersion}
	found, err := fsstore.ReadJSON(s.path, &doc)
	if err != nil && !errors.Is(err, fsstore.ErrDecodeFailed) {
		return languagesFile{}, err
	}
	if err != nil || !found || doc.Languages == nil {
		doc.Languages = map[string]string{}
	}
	doc.Version = languagesFileVersion
	return doc, nil
}
