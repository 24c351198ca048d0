package ticket

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// waitOutstanding polls until the lock reports n holders and waiters.
func waitOutstanding(t *testing.T, l *Lock, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for l.Outstanding() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Outstanding() = %d, want %d", l.Outstanding(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAcquireRelease(t *testing.T) {
	l := New()

	l.Acquire()
	if got := l.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := l.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}

	// Reusable after release.
	l.Acquire()
	if err := l.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	l := New()

	if err := l.Release(); !errors.Is(err, ErrNotHeld) {
		t.Errorf("Release() error = %v, want %v", err, ErrNotHeld)
	}

	// The failed release must not corrupt the counters.
	l.Acquire()
	if err := l.Release(); err != nil {
		t.Errorf("Release() after misuse error = %v", err)
	}
	if err := l.Release(); !errors.Is(err, ErrNotHeld) {
		t.Errorf("double Release() error = %v, want %v", err, ErrNotHeld)
	}
}

func TestFIFOOrder(t *testing.T) {
	l := New()
	const waiters = 8

	l.Acquire()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l.Acquire()
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			_ = l.Release()
		}(i)
		// Each goroutine must hold its ticket before the next one starts.
		waitOutstanding(t, l, uint64(i+2))
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	wg.Wait()

	if len(order) != waiters {
		t.Fatalf("len(order) = %d, want %d", len(order), waiters)
	}
	for i, id := range order {
		if id != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestMutualExclusion(t *testing.T) {
	l := New()
	const goroutines = 32
	const iterations = 50

	var (
		inside int
		maxIn  int
		total  int
		wg     sync.WaitGroup
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				l.Acquire()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				total++
				inside--
				_ = l.Release()
			}
		}()
	}
	wg.Wait()

	if maxIn != 1 {
		t.Errorf("max goroutines inside critical section = %d, want 1", maxIn)
	}
	if total != goroutines*iterations {
		t.Errorf("total = %d, want %d", total, goroutines*iterations)
	}
	if got := l.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}
