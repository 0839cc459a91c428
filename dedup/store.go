package dedup

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
)

const (
	processedFileVersion = 1
	defaultMaxEntries    = 1000
)

type processedFile struct {
	Version int      `json:"version"`
	Hashes  []string `json:"hashes"`
}

// Store is the capped FIFO log of processed-message fingerprints. Entries
// never expire individually; old ones age out once the cap is reached.
type Store struct {
	path       string
	lockPath   string
	maxEntries int
	mu         sync.Mutex
}

func NewStore(path, lockPath string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Store{path: path, lockPath: lockPath, maxEntries: maxEntries}
}

func (s *Store) IsProcessed(ctx context.Context, hash string) (bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	hash = strings.TrimSpace(hash)
	for _, item := range doc.Hashes {
		if item == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecordProcessed(ctx context.Context, hash string) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil
	}
	return fsstore.WithLock(ctx, s.lockPath, func() error {
		doc, err := s.loadLocked()
		if err != nil {
			return err
		}
		for _, item := range doc.Hashes {
			if item == hash {
				return nil
			}
		}
		doc.Hashes = append(doc.Hashes, hash)
		if overflow := len(doc.Hashes) - s.maxEntries; overflow > 0 {
			doc.Hashes = doc.Hashes[overflow:]
		}
		doc.Version = processedFileVersion
		return fsstore.WriteJSONAtomic(s.path, doc, fsstore.FileOptions{})
	})
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return 0, err
	}
	return len(doc.Hashes), nil
}

func (s *Store) loadLocked() (processedFile, error) {
	var doc processedFile
	found, err := fsstore.ReadJSON(s.path, &doc)
	if err != nil {
		if errors.Is(err, fsstore.ErrDecodeFailed) {
			// Corrupt state discards to empty rather than wedging the loop.
			return processedFile{Version: processedFileVersion}, nil
		}
		return processedFile{}, err
	}
	if !found {
		return processedFile{Version: processedFileVersion}, nil
	}
	return doc, nil
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
