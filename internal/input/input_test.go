package input

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func appendFile(t *testing.T, path, contents string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("append: %v", err)
	}
}

// scanLines feeds every line read from r into the returned channel, which is
// closed at end of stream.
func scanLines(r io.Reader) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(r)
		for s.Scan() {
			lines <- s.Text()
		}
	}()
	return lines
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	select {
	case got, ok := <-lines:
		if !ok {
			t.Fatalf("stream ended, want %q", want)
		}
		if got != want {
			t.Fatalf("line = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectEnd(t *testing.T, lines <-chan string) {
	t.Helper()
	select {
	case got, ok := <-lines:
		if ok {
			t.Fatalf("unexpected line %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestOpenStdin(t *testing.T) {
	for _, path := range []string{Stdin, ""} {
		r, err := Open(context.Background(), path, true)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", path, err)
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
	// Closing the reader left stdin usable.
	if _, err := os.Stdin.Stat(); err != nil {
		t.Errorf("stdin was closed: %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.in")
	writeFile(t, path, "write a.txt hi\nread a.txt\n")

	r, err := Open(context.Background(), path, false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	lines := scanLines(r)
	expectLine(t, lines, "write a.txt hi")
	expectLine(t, lines, "read a.txt")
	expectEnd(t, lines)
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"), false); err == nil {
		t.Error("Open() of a missing file should fail")
	}
}

func TestFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.in")
	writeFile(t, path, "read a.txt\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := Open(ctx, path, true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	lines := scanLines(r)
	expectLine(t, lines, "read a.txt")

	appendFile(t, path, "write b.txt later\n")
	expectLine(t, lines, "write b.txt later")

	appendFile(t, path, "empty b.txt\n")
	expectLine(t, lines, "empty b.txt")

	cancel()
	expectEnd(t, lines)
}

func TestFollowEndsOnRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.in")
	writeFile(t, path, "")

	r, err := Open(context.Background(), path, true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	lines := scanLines(r)
	appendFile(t, path, "read a.txt\n")
	expectLine(t, lines, "read a.txt")

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	expectEnd(t, lines)
}

func TestFollowAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.in")
	writeFile(t, path, "read a.txt\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := Open(ctx, path, true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	lines := scanLines(r)
	expectLine(t, lines, "read a.txt")

	writeFile(t, path, "new\n")
	expectLine(t, lines, "new")
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(filepath.Join(t.TempDir(), "commands.in")) {
		t.Error("a file path is never a terminal")
	}
}
