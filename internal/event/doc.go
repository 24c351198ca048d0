// Package event provides a pub-sub event bus that decouples the request
// pipeline from whoever observes it.
//
// The dispatcher and handlers publish what happened to a request, and the
// registry publishes lock lifecycle changes. The serve command subscribes to
// turn those events into log lines; tests subscribe to observe ordering
// without reaching into component internals.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Request Lifecycle:
//   - [RequestAcceptedEvent]: A command line was read and audited
//   - [RequestCompletedEvent]: A handler reached its report state
//
// Lock Registry:
//   - [LockCreatedEvent]: The first reference to an identifier created its lock
//   - [LockEvictedEvent]: An idle lock was dropped from the registry
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// on the publishing goroutine, outside the bus lock, so a handler may publish or
// subscribe without deadlocking. A panicking handler is recovered and logged.
package event
