package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Stdout is the path that routes records to standard output.
const Stdout = "-"

// Writer appends newline-delimited JSON (JSONL) records to a file or stdout.
//
// It is safe for concurrent use. A nil *Writer discards records.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
	enc  *json.Encoder
}

// New returns a JSONL writer for path. Blank path returns nil; "-" writes to
// stdout. The file is opened lazily on first write.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

func (w *Writer) ensureOpenLocked() error {
	if w.enc != nil {
		return nil
	}

	var out io.Writer
	if w.path == Stdout {
		out = os.Stdout
	} else {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w.file = f
		out = f
	}

	w.w = bufio.NewWriterSize(out, 64*1024)
	w.enc = json.NewEncoder(w.w)
	w.enc.SetEscapeHTML(false)
	return nil
}

// Write appends v as one JSON line and flushes so tailers see it at once.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("jsonl: nil record")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return err
	}
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes buffered data and closes the file. Stdout is left open.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil
	w.enc = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
