package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/bytedance/sonic"

	"github.com/penwyp/waybacker/internal/core/model"
)

// Filename derives the result file name from a target URL: dots and colons
// become underscores, then everything outside letters, digits and "-_() "
// is dropped. Deterministic, so reruns find the same file.
func Filename(targetURL string) string {
	replaced := strings.NewReplacer(".", "_", ":", "_").Replace(targetURL)
	var b strings.Builder
	for _, r := range replaced {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
		case strings.ContainsRune("-_() ", r):
			b.WriteRune(r)
		}
	}
	return b.String() + ".jsonl"
}

// Writer appends SnapshotResults to the result file, one JSON object per
// line. Append is safe to call from multiple completing workers: writes are
// serialized under a mutex and each record is a single unbuffered write, so
// lines are never interleaved and a crash loses only in-flight results.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open opens (creating if needed) the result file for targetURL under dir.
// With reset set, prior contents are discarded.
func Open(dir, targetURL string, reset bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, Filename(targetURL))
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if reset {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}

	return &Writer{file: file, path: path}, nil
}

// Path returns the result file path.
func (w *Writer) Path() string {
	return w.path
}

// Append serializes one result and commits it as a whole line.
func (w *Writer) Append(result *model.SnapshotResult) error {
	data, err := sonic.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}
