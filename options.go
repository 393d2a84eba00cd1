package usbtask

import "github.com/gofrs/uuid"

// Option configures an [Executor] created by [New].
type Option func(*Executor)

// WithName sets a human-friendly name for the executor, used in logs and
// reported to the [Observer].
func WithName(name string) Option {
	return func(e *Executor) { e.name = name }
}

// WithObserver sets an [Observer] to be told about lifecycle transitions.
// A nil interface value means no Observer. A non-nil interface holding a nil
// pointer is called like any other Observer, so its methods must handle a
// nil receiver.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// Observer is told about the lifecycle transitions of an [Executor]'s tasks.
//
// Hooks are called synchronously on the goroutine that drives the Executor,
// after the transition has happened and with the slot unlocked.
// They must be fast and must not block.
type Observer interface {
	// Spawned is called after a task has been spawned.
	Spawned(executor string, task uuid.UUID)
	// Stepped is called after a task has been stepped; ready tells whether
	// the step finished it.
	Stepped(executor string, task uuid.UUID, ready bool)
	// Collected is called after n bytes of response have been collected.
	Collected(executor string, task uuid.UUID, n int)
	// Cancelled is called after a running task has been canceled.
	Cancelled(executor string, task uuid.UUID)
	// Panicked is called after a task panicked and has been dropped.
	Panicked(executor string, task uuid.UUID)
}
