// Package input opens the control stream the dispatcher reads from: stdin,
// a file read once, or a file followed as other processes append to it.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Open returns a reader over the control stream at path. With follow set, a
// file is tailed: reads at end of file block until more data is written, and
// the stream ends when ctx is done or the file is removed. follow is ignored
// for stdin. Closing the reader never closes stdin.
func Open(ctx context.Context, path string, follow bool) (io.ReadCloser, error) {
	if path == Stdin || path == "" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open control stream: %w", err)
	}
	if !follow {
		return f, nil
	}

	fr, err := newFollowReader(ctx, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return fr, nil
}

// IsTerminal reports whether path names stdin and stdin is an interactive
// terminal.
func IsTerminal(path string) bool {
	if path != Stdin && path != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// followReader tails a file using fsnotify events on its directory.
type followReader struct {
	ctx     context.Context
	f       *os.File
	path    string
	watcher *fsnotify.Watcher
}

func newFollowReader(ctx context.Context, f *os.File) (*followReader, error) {
	abs, err := filepath.Abs(f.Name())
	if err != nil {
		return nil, fmt.Errorf("resolve control stream path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory; editors and shells often replace files in place.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &followReader{ctx: ctx, f: f, path: abs, watcher: watcher}, nil
}

func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if done, err := r.waitForWrite(); done || err != nil {
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
	}
}

// waitForWrite blocks until the file changes. done is true once the stream
// should end.
func (r *followReader) waitForWrite() (done bool, err error) {
	for {
		select {
		case <-r.ctx.Done():
			return true, nil

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return true, nil
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return true, nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			return false, r.rewindIfTruncated()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return true, nil
			}
			return false, fmt.Errorf("watch control stream: %w", err)
		}
	}
}

// rewindIfTruncated restarts from the top when the file shrank below the
// current offset.
func (r *followReader) rewindIfTruncated() error {
	info, err := r.f.Stat()
	if err != nil {
		return err
	}
	off, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if info.Size() < off {
		_, err = r.f.Seek(0, io.SeekStart)
	}
	return err
}

func (r *followReader) Close() error {
	werr := r.watcher.Close()
	ferr := r.f.Close()
	return errors.Join(werr, ferr)
}
