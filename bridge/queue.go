// Package bridge carries operator-authored replies from the operations
// channel back to the platform thread, and holds the pending-human flags
// the handoff coordinator races against.
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
	"github.com/google/uuid"
)

const queueFileVersion = 1

// Item is one human-authored reply waiting to be delivered.
type Item struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type queueFile struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// Queue is the file-backed global FIFO. Consumption is destructive and
// returns at most one item per call.
type Queue struct {
	path     string
	lockPath string
	mu       sync.Mutex

	now func() time.Time
}

func NewQueue(path, lockPath string) *Queue {
	return &Queue{path: path, lockPath: lockPath, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, username, text string) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	username = normalizeUsername(username)
	text = strings.TrimSpace(text)
	if username == "" || text == "" {
		return errors.New("bridge: username and text are required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	return fsstore.WithLock(ctx, q.lockPath, func() error {
		doc, err := q.loadLocked()
		if err != nil {
			return err
		}
		doc.Items = append(doc.Items, Item{
			ID:        uuid.NewString(),
			Username:  username,
			Text:      text,
			Timestamp: q.now().UTC(),
		})
		return q.saveLocked(doc)
	})
}

// DequeueNext pops the head of the queue regardless of username.
func (q *Queue) DequeueNext(ctx context.Context) (Item, bool, error) {
	return q.dequeue(ctx, func(items []Item) int {
		if len(items) == 0 {
			return -1
		}
		return 0
	})
}

// DequeueFor removes the first item enqueued for username, preserving the
// relative order of everything else.
func (q *Queue) DequeueFor(ctx context.Context, username string) (Item, bool, error) {
	username = normalizeUsername(username)
	return q.dequeue(ctx, func(items []Item) int {
		for i, item := range items {
			if item.Username == username {
				return i
			}
		}
		return -1
	})
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	doc, err := q.loadLocked()
	if err != nil {
		return 0, err
	}
	return len(doc.Items), nil
}

func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	doc, err := q.loadLocked()
	if err != nil {
		return nil, err
	}
	return append([]Item(nil), doc.Items...), nil
}

func (q *Queue) dequeue(ctx context.Context, pick func([]Item) int) (Item, bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Item{}, false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		out   Item
		found bool
	)
	err := fsstore.WithLock(ctx, q.lockPath, func() error {
		doc, err := q.loadLocked()
		if err != nil {
			return err
		}
		idx := pick(doc.Items)
		if idx < 0 {
			return nil
		}
		out = doc.Items[idx]
		found = true
		doc.Items = append(doc.Items[:idx], doc.Items[idx+1:]...)
		return q.saveLocked(doc)
	})
	if err != nil {
		return Item{}, false, err
	}
	return out, found, nil
}

func (q *Queue) loadLocked() (queueFile, error) {
	doc := queueFile{Version: queueFileVersion}
	found, err := fsstore.ReadJSON(q.path, &doc)
	if err != nil && !errors.Is(err, fsstore.ErrDecodeFailed) {
		return queueFile{}, err
	}
	if err != nil || !found {
		doc = queueFile{Version: queueFileVersion}
	}
	return doc, nil
}

func (q *Queue) saveLocked(doc queueFile) error {
	doc.Version = queueFileVersion
	return fsstore.WriteJSONAtomic(q.path, doc, fsstore.FileOptions{})
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
