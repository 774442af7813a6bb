package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// lineWriter writes each line to stdout and to the optional log file under
// one lock so lines from concurrent handlers never interleave.
type lineWriter struct {
	mu     sync.Mutex
	stdout io.Writer
	files  []*os.File
}

// openLineWriter opens dir/file for appending when both are set. A file that
// cannot be opened is reported on stderr and skipped.
func openLineWriter(dir, file string) (*lineWriter, error) {
	w := &lineWriter{stdout: os.Stdout}
	dir, file = strings.TrimSpace(dir), strings.TrimSpace(file)
	if dir == "" || file == "" {
		return w, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logger: create log dir %s: %v\n", dir, err)
		return w, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open log file %s: %v\n", path, err)
		return w, nil
	}
	w.files = append(w.files, f)
	return w, nil
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	if _, err := w.stdout.Write(p); err != nil {
		errs = append(errs, err)
	}
	for _, f := range w.files {
		if _, err := f.Write(p); err != nil {
			errs = append(errs, err)
		}
	}
	return len(p), errors.Join(errs...)
}

// Close closes the log files; later lines go to stdout only.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, f := range w.files {
		errs = append(errs, f.Close())
	}
	w.files = nil
	return errors.Join(errs...)
}
