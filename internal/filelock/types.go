package filelock

import (
	"errors"

	"github.com/Iron-Ham/filesrv/internal/event"
)

// Sentinel errors returned by registry operations.
var (
	// ErrClosed is returned by LockFor after Shutdown.
	ErrClosed = errors.New("lock registry is shut down")

	// ErrNotHeld is returned when a handle is released without being acquired,
	// or released twice.
	ErrNotHeld = errors.New("lock handle is not held")
)

// Option configures a Registry.
type Option func(*Registry)

// WithEviction drops an entry once no handle references it.
func WithEviction() Option {
	return func(r *Registry) {
		r.evict = true
	}
}

// WithBus publishes lock lifecycle events to bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}
