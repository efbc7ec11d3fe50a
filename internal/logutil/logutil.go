// Package logutil configures the standard logger for the commands.
package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const (
	maxSizeBytes = 10 * 1024 * 1024
	maxArchives  = 3
)

// Setup points the standard logger at stderr, or at file when set. File
// output rotates at 10 MB keeping three archives. verbose adds file:line.
func Setup(verbose bool, file string) (io.Closer, error) {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)

	if file == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	w, err := newRotatingWriter(file, maxSizeBytes, maxArchives)
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type rotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	archives int
	f        *os.File
}

func newRotatingWriter(path string, maxSize int64, archives int) (*rotatingWriter, error) {
	w := &rotatingWriter{path: path, maxSize: maxSize, archives: archives}
	w.rotateIfNeeded(0)
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	w.f = f
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.maxSize {
		_ = w.f.Close()
		w.rotateIfNeeded(int64(len(p)))
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	return w.f.Write(p)
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// rotateIfNeeded shifts path -> path.1 -> path.2 ... dropping the oldest.
func (w *rotatingWriter) rotateIfNeeded(incoming int64) {
	st, err := os.Stat(w.path)
	if err != nil || st.Size()+incoming <= w.maxSize {
		return
	}
	_ = os.Remove(w.archiveName(w.archives))
	for i := w.archives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	_ = os.Rename(w.path, w.archiveName(1))
}

func (w *rotatingWriter) archiveName(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if k == "" {
		return "(none)"
	}
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
