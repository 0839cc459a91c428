package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	return NewQueue(filepath.Join(dir, "reply_queue.json"), filepath.Join(dir, "reply_queue.lck"))
}

func TestDequeueNextGlobalFIFO(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	for _, pair := range [][2]string{{"ana", "uno"}, {"beto", "dos"}, {"ana", "tres"}} {
		if err := q.Enqueue(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	var texts []string
	for {
		item, ok, err := q.DequeueNext(ctx)
		if err != nil {
			t.Fatalf("DequeueNext() error = %v", err)
		}
		if !ok {
			break
		}
		texts = append(texts, item.Text)
	}
	want := []string{"uno", "dos", "tres"}
	if len(texts) != len(want) {
		t.Fatalf("dequeued = %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("dequeued = %v, want %v", texts, want)
		}
	}
}

func TestDequeueForOnlyMatchesUser(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "beto", "para beto"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, "ana", "primero"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, "ana", "segundo"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	item, ok, err := q.DequeueFor(ctx, "@ana")
	if err != nil {
		t.Fatalf("DequeueFor() error = %v", err)
	}
	if !ok || item.Username != "ana" || item.Text != "primero" {
		t.Fatalf("DequeueFor() = %+v, want ana/primero", item)
	}
	item, ok, err = q.DequeueFor(ctx, "ana")
	if err != nil {
		t.Fatalf("DequeueFor() error = %v", err)
	}
	if !ok || item.Text != "segundo" {
		t.Fatalf("DequeueFor() second = %+v, want segundo", item)
	}
	if _, ok, _ = q.DequeueFor(ctx, "ana"); ok {
		t.Fatalf("DequeueFor() returned item for drained user")
	}
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Len() = %d, want 1 (beto's item untouched)", n)
	}
}

func TestPendingStoreLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewPendingStore(filepath.Join(dir, "pending.json"), filepath.Join(dir, "pending.lck"))
	ctx := context.Background()

	long := make([]rune, 200)
	for i := range long {
		long[i] = 'x'
	}
	if err := s.Set(ctx, "ana", string(long)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	flag, ok, err := s.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatalf("Get() ok = false after Set")
	}
	if len([]rune(flag.Preview)) != 80 {
		t.Fatalf("Preview length = %d, want 80", len([]rune(flag.Preview)))
	}
	if flag.Since.IsZero() {
		t.Fatalf("Since is zero")
	}
	if err := s.Clear(ctx, "ana"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "ana"); ok {
		t.Fatalf("Get() ok = true after Clear")
	}
}

func TestLanguageStoreSkipsSpanish(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewLanguageStore(filepath.Join(dir, "langs.json"), filepath.Join(dir, "langs.lck"))
	ctx := context.Background()

	if err := s.Set(ctx, "ana", "es"); err != nil {
		t.Fatalf("Set(es) error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "ana"); ok {
		t.Fatalf("Spanish recorded, want skipped")
	}
	if err := s.Set(ctx, "ana", "EN"); err != nil {
		t.Fatalf("Set(en) error = %v", err)
	}
	lang, ok, err := s.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || lang != "en" {
		t.Fatalf("Get() = (%q, %v), want (en, true)", lang, ok)
	}
}

func TestWatcherSignalsOnQueueWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	queuePath := filepath.Join(dir, "reply_queue.json")
	q := NewQueue(queuePath, filepath.Join(dir, "reply_queue.lck"))

	w, err := NewWatcher(queuePath)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := q.Enqueue(context.Background(), "ana", "hola"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatalf("no change signal after enqueue")
	}
}
