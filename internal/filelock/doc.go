// Package filelock maps resource identifiers to fair locks.
//
// A [Registry] creates a [ticket.Lock] the first time an identifier is
// referenced and hands out [Handle] values that callers acquire and release
// around the work they do on that resource. The registry's own map is guarded
// by a separate ticket lock, so two concurrent first references to the same
// identifier can never create two locks for it. Looking up a handle never waits
// on the resource lock itself; only [Handle.Acquire] does.
//
// # Basic Usage
//
//	reg := filelock.NewRegistry()
//	defer reg.Shutdown()
//
//	h, err := reg.LockFor("data/a.txt")
//	if err != nil {
//	    return err
//	}
//	h.Acquire()
//	defer h.Release()
//
// # Eviction
//
// By default entries live until [Registry.Shutdown]; the number of entries is
// bounded by the number of distinct identifiers ever seen. [WithEviction]
// enables reference counting instead: LockFor takes a reference while still
// holding the registry lock, Release drops it under the same lock, and the
// entry is removed only when the count reaches zero. A goroutine can therefore
// never attach to an entry that is concurrently being evicted.
//
// # Thread Safety
//
// [Registry] methods are safe for concurrent use. A [Handle] belongs to the
// goroutine that obtained it and must not be shared.
package filelock
