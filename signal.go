package usbtask

// Event is the interface of any type that can be watched by a [Task].
//
// The following types implement Event: [Signal] and [State].
// Any type that embeds [Signal] also implements Event, e.g. [State].
//
// Events are never pushed to a Task. Instead, every time the Task is stepped,
// it compares the versions it saw when it started watching against the
// current ones, and only runs its [Operation] again if one of them changed.
type Event interface {
	version() uint64
}

// Signal is a type that implements [Event].
//
// Calling the Notify method of a Signal resumes, on its next step, any [Task]
// that is awaiting the Signal.
//
// A Signal must not be shared by more than one [Executor].
type Signal struct {
	n uint64
}

func (s *Signal) version() uint64 {
	return s.n
}

// Notify resumes any [Task] that is awaiting s.
//
// One should only call this method on the goroutine that drives the
// [Executor].
func (s *Signal) Notify() {
	s.n++
}
