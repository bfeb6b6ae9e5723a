// Package logging builds the slog logger of a binary
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

func level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New logs to w with a text handler
func New(w io.Writer, debug bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(debug)}))
}

// Open appends to the file at path, for programs that own the terminal.
// An empty path discards everything.
func Open(path string, debug bool) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return New(io.Discard, debug), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	return New(f, debug), f, nil
}
