package filelock

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/Iron-Ham/filesrv/internal/event"
	"github.com/Iron-Ham/filesrv/internal/ticket"
)

// entry pairs an identifier with its lock. refs is only meaningful with
// eviction enabled and is guarded by the registry lock.
type entry struct {
	id   string
	lock *ticket.Lock
	refs int
}

// Registry owns the set of per-resource fair locks.
type Registry struct {
	guard   *ticket.Lock // serializes access to entries and closed
	entries map[string]*entry
	closed  bool
	evict   bool
	bus     *event.Bus
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		guard:   ticket.New(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LockFor returns a handle to the lock for id, creating the lock on first
// reference. It does not wait for the resource lock.
func (r *Registry) LockFor(id string) (*Handle, error) {
	r.guard.Acquire()
	if r.closed {
		r.unguard()
		return nil, fmt.Errorf("%w: lock for %q", ErrClosed, id)
	}

	e, ok := r.entries[id]
	if !ok {
		e = &entry{id: id, lock: ticket.New()}
		r.entries[id] = e
	}
	if r.evict {
		e.refs++
	}
	r.unguard()

	if !ok {
		r.bus.Publish(event.NewLockCreatedEvent(id))
	}
	return &Handle{reg: r, e: e}, nil
}

// detach drops one reference taken by LockFor and evicts the entry when it
// was the last one.
func (r *Registry) detach(e *entry) {
	if !r.evict {
		return
	}

	r.guard.Acquire()
	e.refs--
	evicted := false
	if e.refs == 0 && r.entries[e.id] == e {
		delete(r.entries, e.id)
		evicted = true
	}
	r.unguard()

	if evicted {
		r.bus.Publish(event.NewLockEvictedEvent(e.id))
	}
}

// Len returns the number of identifiers currently in the registry.
func (r *Registry) Len() int {
	r.guard.Acquire()
	defer r.unguard()
	return len(r.entries)
}

// Resources returns the identifiers currently in the registry, sorted.
func (r *Registry) Resources() []string {
	r.guard.Acquire()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.unguard()

	sort.Strings(ids)
	return ids
}

// Shutdown stops the registry from handing out new handles, then waits for
// every lock's current holder and queued waiters to finish before dropping
// it. Locks are drained in identifier order. It returns the number of locks
// destroyed. Calling Shutdown again returns 0.
func (r *Registry) Shutdown() int {
	r.guard.Acquire()
	if r.closed {
		r.unguard()
		return 0
	}
	r.closed = true
	drained := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		drained = append(drained, e)
	}
	r.entries = make(map[string]*entry)
	r.unguard()

	// Draining happens outside the guard: a holder may still need LockFor
	// (and get ErrClosed) before it can release.
	sort.Slice(drained, func(i, j int) bool { return drained[i].id < drained[j].id })
	for _, e := range drained {
		e.lock.Acquire()
		_ = e.lock.Release()
	}
	return len(drained)
}

// unguard releases the registry lock. The guard is only ever released by the
// goroutine that acquired it, so an error here is a programming bug.
func (r *Registry) unguard() {
	if err := r.guard.Release(); err != nil {
		panic(fmt.Sprintf("filelock: registry guard: %v", err))
	}
}

// Handle is one caller's reference to a resource lock.
type Handle struct {
	reg  *Registry
	e    *entry
	held atomic.Bool
}

// ID returns the resource identifier the handle locks.
func (h *Handle) ID() string { return h.e.id }

// Acquire waits, in FIFO order, for exclusive access to the resource.
func (h *Handle) Acquire() {
	h.e.lock.Acquire()
	h.held.Store(true)
}

// Release gives up access to the resource. Releasing a handle that is not
// held returns ErrNotHeld and has no effect, so a second Release is harmless.
func (h *Handle) Release() error {
	if !h.held.CompareAndSwap(true, false) {
		return fmt.Errorf("%w: %s", ErrNotHeld, h.e.id)
	}
	if err := h.e.lock.Release(); err != nil {
		return fmt.Errorf("release %s: %w", h.e.id, err)
	}
	h.reg.detach(h.e)
	return nil
}
