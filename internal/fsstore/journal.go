package fsstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultJournalMaxBytes = 64 * 1024 * 1024

// JournalWriter appends JSON records, one per line, to a file that is
// rotated in place once it grows past MaxBytes. Writes are flushed
// immediately so a crash loses at most the record being written.
type JournalWriter struct {
	path     string
	maxBytes int64
	filePerm os.FileMode
	dirPerm  os.FileMode

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	size   int64
	closed bool

	now func() time.Time
}

func NewJournalWriter(path string, maxBytes int64, opts FileOptions) (*JournalWriter, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	opts = normalizeFileOptions(opts)
	if maxBytes <= 0 {
		maxBytes = defaultJournalMaxBytes
	}
	w := &JournalWriter{
		path:     normalized,
		maxBytes: maxBytes,
		filePerm: opts.FilePerm,
		dirPerm:  opts.DirPerm,
		now:      time.Now,
	}
	if err := w.openLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *JournalWriter) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: journal encode %s: %v", ErrEncodeFailed, w.path, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("journal writer closed: %s", w.path)
	}
	if err := w.rotateIfNeededLocked(int64(len(data))); err != nil {
		return err
	}
	n, err := w.writer.Write(data)
	if err != nil {
		return err
	}
	w.size += int64(n)
	return w.writer.Flush()
}

func (w *JournalWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.writer != nil {
		_ = w.writer.Flush()
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		w.writer = nil
		return err
	}
	return nil
}

func (w *JournalWriter) rotateIfNeededLocked(incoming int64) error {
	if w.size+incoming <= w.maxBytes {
		return nil
	}
	if w.writer != nil {
		_ = w.writer.Flush()
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file = nil
	w.writer = nil
	w.size = 0

	ts := w.now().UTC().Format("20060102T150405Z")
	rotated := fmt.Sprintf("%s.%s", w.path, ts)
	for i := 1; ; i++ {
		if _, err := os.Stat(rotated); errors.Is(err, os.ErrNotExist) {
			break
		} else if err != nil {
			return err
		}
		rotated = fmt.Sprintf("%s.%s.%d", w.path, ts, i)
	}
	if err := os.Rename(w.path, rotated); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return w.openLocked()
}

func (w *JournalWriter) openLocked() error {
	if err := EnsureDir(filepath.Dir(w.path), w.dirPerm); err != nil {
		return err
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.filePerm)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.writer = bufio.NewWriterSize(file, 32*1024)
	w.size = info.Size()
	return nil
}
