package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestReadJSONMissingFile(t *testing.T) {
	t.Parallel()
	var out map[string]any
	found, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if found {
		t.Fatalf("ReadJSON() found = true, want false")
	}
}

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	in := map[string]int{"count": 7}
	if err := WriteJSONAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}
	var out map[string]int
	found, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !found {
		t.Fatalf("ReadJSON() found = false, want true")
	}
	if out["count"] != 7 {
		t.Fatalf("out[count] = %d, want 7", out["count"])
	}
}

func TestReadJSONDecodeError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var out map[string]any
	if _, err := ReadJSON(path, &out); !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("ReadJSON() error = %v, want ErrDecodeFailed", err)
	}
}

func TestBuildLockPathValidation(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	got, err := BuildLockPath(root, "reply_queue")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}
	if want := filepath.Join(root, "reply_queue.lck"); got != want {
		t.Fatalf("BuildLockPath() = %q, want %q", got, want)
	}
	for _, key := range []string{"", "Upper", "bad/key", ".dot", "dot."} {
		if _, err := BuildLockPath(root, key); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("BuildLockPath(%q) error = %v, want ErrInvalidPath", key, err)
		}
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	t.Parallel()
	lockPath := filepath.Join(t.TempDir(), "state.lck")
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), lockPath, func() error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("concurrent critical sections = %d, want 1", maxSeen)
	}
}

func TestJournalWriterAppendAndRotate(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewJournalWriter(path, 64, FileOptions{})
	if err != nil {
		t.Fatalf("NewJournalWriter() error = %v", err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		if err := w.Append(map[string]string{"event": strings.Repeat("x", 20)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("files after rotation = %d, want >= 2", len(entries))
	}
}
