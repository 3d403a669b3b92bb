package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // human-readable console output instead of JSON
	File       string // rotating log file; empty disables file output
	MaxSizeMB  int64
	MaxBackups int
	Console    io.Writer // defaults to os.Stderr
}

// New creates the application logger writing to the console and, when
// configured, to a size-rotated file. The returned closer releases the file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = cfg.Console
	if console == nil {
		console = os.Stderr
	}
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	var fileErr error

	if cfg.File != "" {
		rotator := &Rotator{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB * 1024 * 1024,
			MaxBackups: cfg.MaxBackups,
		}
		if err := rotator.openExistingOrNew(); err != nil {
			// Console only; the caller decides whether that is fatal.
			fileErr = fmt.Errorf("open log file: %w", err)
		} else {
			writers = append(writers, rotator)
			closer = rotator
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	return l, closer, fileErr
}

// ParseLevel maps a config string to a level; unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Rotator implements io.Writer and handles log file rotation based on size.
type Rotator struct {
	Filename   string
	MaxSize    int64 // Bytes; <= 0 disables rotation
	MaxBackups int
	file       *os.File
	size       int64
	mu         sync.Mutex
}

func (r *Rotator) openExistingOrNew() error {
	if err := os.MkdirAll(filepath.Dir(r.Filename), 0o755); err != nil {
		return err
	}

	info, err := os.Stat(r.Filename)
	if os.IsNotExist(err) {
		return r.openNew()
	}
	if err != nil {
		return err
	}

	// File exists, open it in append mode
	f, err := os.OpenFile(r.Filename, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *Rotator) openNew() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

// Write satisfies the io.Writer interface. It checks size and rotates if needed.
func (r *Rotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	writeLen := int64(len(p))

	if r.file == nil {
		if err = r.openExistingOrNew(); err != nil {
			return 0, err
		}
	}

	if r.MaxSize > 0 && r.size > 0 && r.size+writeLen > r.MaxSize {
		if err := r.rotate(); err != nil {
			// Keep writing to whatever is open rather than lose the line.
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close closes the current file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// rotate closes the current file, renames backups, and opens a new file.
func (r *Rotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	// log.2 -> log.3, log.1 -> log.2, log -> log.1
	for i := r.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.Filename, i)
		newPath := fmt.Sprintf("%s.%d", r.Filename, i+1)

		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			continue
		}
		os.Rename(oldPath, newPath)
	}

	if r.MaxBackups > 0 {
		if _, err := os.Stat(r.Filename); err == nil {
			os.Rename(r.Filename, fmt.Sprintf("%s.1", r.Filename))
		}
	}

	return r.openNew()
}
