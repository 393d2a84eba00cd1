package usbtask

// A State is a [Signal] that carries a value.
// To retrieve the value, call the Get method.
//
// Calling the Set method of a state updates the value and resumes any [Task]
// that is awaiting the state.
// A typical use is to hand user input (a button press, an entered password)
// to a workflow that is waiting for it.
//
// A State must not be shared by more than one [Executor].
type State[T any] struct {
	Signal
	value T
}

// NewState creates a new [State] with its initial value set to v.
func NewState[T any](v T) *State[T] {
	return &State[T]{value: v}
}

// Get retrieves the value of s.
func (s *State[T]) Get() T {
	return s.value
}

// Set updates the value of s and resumes any [Task] that is awaiting s.
//
// One should only call this method on the goroutine that drives the
// [Executor].
func (s *State[T]) Set(v T) {
	s.value = v
	s.Notify()
}

// Update sets the value of s to f(s.Get()) and resumes any [Task] that is
// awaiting s.
func (s *State[T]) Update(f func(v T) T) {
	s.Set(f(s.value))
}
