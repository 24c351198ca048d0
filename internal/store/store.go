// Package store performs the byte-level file effects of the server: append,
// copy-out, truncate and existence checks.
//
// Store does no locking of its own. Every call is made by a handler that
// already holds the registry lock for each file involved.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// Store wraps an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a Store over fs.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOS returns a Store rooted at dir on the host filesystem. Identifiers are
// resolved relative to dir and cannot escape it. dir is created if needed.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Exists reports whether name exists.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Size returns the size of name in bytes.
func (s *Store) Size(name string) (int64, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Size(), nil
}

// Append writes data at the end of name, creating it if absent.
func (s *Store) Append(name string, data []byte) error {
	f, err := s.openAppend(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", name, err)
	}
	return f.Close()
}

// AppendLine appends text followed by a newline.
func (s *Store) AppendLine(name, text string) error {
	return s.Append(name, []byte(text+"\n"))
}

// AppendRecord appends prefix, the full contents of src, and a newline to
// dst. src must exist. The record is assembled in a buffer and written to dst
// in one pass, so a failure reading src leaves dst unchanged.
func (s *Store) AppendRecord(dst, prefix, src string) (int64, error) {
	in, err := s.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := s.openAppend(dst)
	if err != nil {
		return 0, err
	}

	w := bufio.NewWriter(out)
	_, _ = w.WriteString(prefix)
	n, err := io.Copy(w, in)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("read %s: %w", src, err)
	}
	_ = w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return n, fmt.Errorf("append %s: %w", dst, err)
	}
	return n, out.Close()
}

// Truncate empties name. It fails if name does not exist.
func (s *Store) Truncate(name string) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", name, err)
	}
	return f.Close()
}

// Contents returns the full contents of name.
func (s *Store) Contents(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) openAppend(name string) (afero.File, error) {
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", name, err)
	}
	return f, nil
}
