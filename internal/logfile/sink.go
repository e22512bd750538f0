// Package logfile owns the request log file and its numbered backups.
package logfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/uis-platform/uisapi/internal/metrics"
)

// ErrClosed is returned by Write and Rotate after Close.
var ErrClosed = errors.New("logfile: sink closed")

// Sink appends to one primary file and rotates it into path.1 … path.N once it
// reaches maxBytes. All size checks, rotations and appends run under mu, so
// concurrent writers never observe a half-rotated chain.
type Sink struct {
	mu          sync.Mutex
	path        string
	maxBytes    int64
	backupCount int
	file        *os.File
	closed      bool
}

// Open creates the parent directory and opens path for appending.
func Open(path string, maxBytes int64, backupCount int) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("logfile: empty path")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("logfile: max bytes must be positive, got %d", maxBytes)
	}
	if backupCount < 0 {
		return nil, fmt.Errorf("logfile: backup count must not be negative, got %d", backupCount)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logfile: create dir: %w", err)
	}
	s := &Sink{path: path, maxBytes: maxBytes, backupCount: backupCount}
	if err := s.openPrimary(false); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the primary file path.
func (s *Sink) Path() string { return s.path }

// BackupPath returns the name of backup i (1 is the newest).
func (s *Sink) BackupPath(i int) string { return s.path + "." + strconv.Itoa(i) }

// Write appends p, rotating first when the primary has reached maxBytes.
// The primary may exceed maxBytes by at most one write.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.rotateIfNeeded(); err != nil {
		metrics.LogWriteErrorsTotal.Inc()
		return 0, err
	}
	n, err := s.file.Write(p)
	metrics.LogBytesWrittenTotal.Add(float64(n))
	if err != nil {
		metrics.LogWriteErrorsTotal.Inc()
		return n, fmt.Errorf("logfile: write: %w", err)
	}
	return n, nil
}

// Rotate forces a rotation regardless of the current size.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.rotate(); err != nil {
		metrics.LogWriteErrorsTotal.Inc()
		return err
	}
	return nil
}

// Close closes the primary file. Later writes fail with ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) rotateIfNeeded() error {
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// removed from under us: size 0, start a new primary
		return s.openPrimary(false)
	case err != nil:
		return fmt.Errorf("logfile: stat: %w", err)
	}
	if s.file == nil {
		if err := s.openPrimary(false); err != nil {
			return err
		}
	}
	if info.Size() < s.maxBytes {
		return nil
	}
	return s.rotate()
}

func (s *Sink) rotate() error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if s.backupCount == 0 {
		if err := s.openPrimary(true); err != nil {
			return err
		}
		metrics.LogRotationsTotal.Inc()
		return nil
	}
	if err := os.Remove(s.BackupPath(s.backupCount)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("logfile: remove oldest backup: %w", err)
	}
	for i := s.backupCount - 1; i >= 1; i-- {
		src := s.BackupPath(i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, s.BackupPath(i+1)); err != nil {
			return fmt.Errorf("logfile: shift backup %d: %w", i, err)
		}
	}
	if err := os.Rename(s.path, s.BackupPath(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("logfile: move primary: %w", err)
	}
	if err := s.openPrimary(false); err != nil {
		return err
	}
	metrics.LogRotationsTotal.Inc()
	return nil
}

func (s *Sink) openPrimary(truncate bool) error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("logfile: open: %w", err)
	}
	s.file = f
	return nil
}
