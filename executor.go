package usbtask

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/iidesho/bragi/sbragi"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

// Phase is the lifecycle phase of an [Executor]'s slot.
type Phase int

const (
	// PhaseIdle means there is no task; a new one can be spawned.
	PhaseIdle Phase = iota
	// PhaseRunning means a task has been spawned and has not finished yet.
	PhaseRunning
	// PhaseResultReady means a task has finished and its response is waiting
	// to be collected.
	PhaseResultReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseResultReady:
		return "result-ready"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// An Executor runs at most one [Workflow] at a time, on behalf of
// a request/response command interface.
//
// A request spawns a task with the Spawn method. A polling loop calls the
// Advance method, once per iteration, to step the task. Once the task has
// finished, its response is collected with the CopyResponse method, which
// makes the Executor idle again. A running task can be dropped with the
// Cancel method.
//
// An Executor is single-threaded: all methods are to be called by the one
// goroutine that owns it. The internal mutex only guards the slot; it is
// never held while a Workflow is stepping, so a Workflow may call methods of
// its own Executor (e.g. Phase or Cancel) without deadlocking.
//
// The zero value of Executor is ready to use. Use [New] to set options.
type Executor struct {
	mu       sync.Mutex
	phase    Phase
	task     Workflow // nil while busy
	busy     bool     // task is out of the slot, being created or stepped
	result   []byte
	id       uuid.UUID
	steps    int
	name     string
	observer Observer
}

// New creates an [Executor].
func New(opts ...Option) *Executor {
	e := new(Executor)
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Spawn creates a task by calling f with a copy of input, and makes it
// the running task of e.
//
// The task does not run until the next call to the Advance method.
//
// Spawn panics with a [*Fault] if e is not idle: a previous task must be
// collected or canceled first. Spawn also panics with a [*Fault] if f
// returns nil.
func (e *Executor) Spawn(f Factory, input []byte) {
	e.mu.Lock()

	switch e.phase {
	case PhaseRunning:
		e.mu.Unlock()
		panic(fault("spawn", "previous task still in progress"))
	case PhaseResultReady:
		e.mu.Unlock()
		panic(fault("spawn", "previous result not collected"))
	}

	id := uuid.Must(uuid.NewV7())

	e.phase = PhaseRunning
	e.busy = true
	e.id = id
	e.steps = 0
	e.mu.Unlock()

	var w Workflow

	var ps panicstack
	if !ps.Try(func() { w = f(slices.Clone(input)) }) || w == nil {
		e.mu.Lock()
		e.reset()
		e.mu.Unlock()
		ps.Repanic()
		panic(fault("spawn", "factory returned a nil workflow"))
	}

	e.mu.Lock()
	if e.phase != PhaseRunning || !e.busy || e.id != id {
		e.mu.Unlock()
		panic(fault("spawn", "illegal executor state"))
	}
	e.task = w
	e.busy = false
	e.mu.Unlock()

	log.Debug("spawned task", "executor", e.name, "task", id, "input_len", len(input))

	if o := e.observer; o != nil {
		o.Spawned(e.name, id)
	}
}

// Advance steps the running task, if there is one. Otherwise it does nothing.
// This is supposed to be called from the polling loop.
//
// The task is taken out of the slot before it is stepped and put back
// afterwards, so the slot is not locked during the step.
// If the step finishes the task, e moves to [PhaseResultReady], holding
// the response.
//
// Advance panics with a [*Fault] if the slot has been changed behind its
// back during the step, or if it is called again from within the step.
// If the task itself panics, Advance drops it, makes e idle, and panics with
// a [*PanicError].
func (e *Executor) Advance() {
	e.mu.Lock()

	if e.phase != PhaseRunning {
		e.mu.Unlock()
		return
	}

	if e.busy {
		e.mu.Unlock()
		panic(fault("advance", "task not found"))
	}

	w, id := e.task, e.id
	e.task = nil
	e.busy = true
	e.mu.Unlock()

	var out Outcome

	var ps panicstack
	if !ps.Try(func() { out = w.Step() }) {
		e.mu.Lock()
		e.reset()
		e.mu.Unlock()

		ps.Try(func() { closeWorkflow(w, id) })

		log.Warning("task panicked", "executor", e.name, "task", id)

		if o := e.observer; o != nil {
			o.Panicked(e.name, id)
		}

		ps.Repanic()
	}

	e.mu.Lock()

	if e.phase != PhaseRunning || !e.busy || e.task != nil || e.id != id {
		e.mu.Unlock()
		panic(fault("advance", "illegal executor state"))
	}

	e.busy = false
	e.steps++

	ready := out.Ready()
	if ready {
		e.phase = PhaseResultReady
		e.result = slices.Clone(out.Output())
	} else {
		e.task = w
	}

	steps, n := e.steps, len(e.result)
	e.mu.Unlock()

	if ready {
		log.Debug("task finished", "executor", e.name, "task", id, "steps", steps, "output_len", n)
	} else {
		log.Trace("task pending", "executor", e.name, "task", id, "steps", steps)
	}

	if o := e.observer; o != nil {
		o.Stepped(e.name, id, ready)
	}
}

// CopyResponse collects the response of a finished task.
//
// If a response is available, CopyResponse copies it to dst, makes e idle,
// and returns the number of bytes written. Otherwise, it returns
// [ErrNotRunning] if no task is running, or [ErrNotReady] if a task is
// running and a response is expected in the future.
//
// dst must be large enough to hold the response. If it is not, CopyResponse
// panics with a [*Fault], writes nothing, and the response stays available.
func (e *Executor) CopyResponse(dst []byte) (int, error) {
	e.mu.Lock()

	switch e.phase {
	case PhaseIdle:
		e.mu.Unlock()
		return 0, ErrNotRunning
	case PhaseRunning:
		e.mu.Unlock()
		return 0, ErrNotReady
	}

	n := len(e.result)
	if len(dst) < n {
		e.mu.Unlock()
		panic(fault("copy_response", fmt.Sprintf("destination buffer too small: %d < %d", len(dst), n)))
	}

	copy(dst, e.result)

	id := e.id
	e.reset()
	e.mu.Unlock()

	log.Debug("collected response", "executor", e.name, "task", id, "len", n)

	if o := e.observer; o != nil {
		o.Collected(e.name, id, n)
	}

	return n, nil
}

// Cancel drops the running task, making e idle.
// It reports whether a task was canceled.
//
// Canceling is unconditional: the task is not asked to finish, it is simply
// discarded. If the task implements io.Closer, Close is called after e has
// become idle.
//
// Cancel only acts on a task resting in the slot. Called from within the
// task's own step, Cancel finds no task to cancel and returns false.
func (e *Executor) Cancel() bool {
	e.mu.Lock()

	if e.phase != PhaseRunning || e.busy {
		e.mu.Unlock()
		return false
	}

	w, id := e.task, e.id
	e.reset()
	e.mu.Unlock()

	log.Debug("canceled task", "executor", e.name, "task", id)

	var ps panicstack
	ps.Try(func() { closeWorkflow(w, id) })

	if o := e.observer; o != nil {
		o.Cancelled(e.name, id)
	}

	ps.Repanic()

	return true
}

// Phase returns the current phase of e.
// While a task is being stepped, Phase reports [PhaseRunning].
func (e *Executor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Status is a snapshot of an [Executor]'s slot.
type Status struct {
	Phase Phase
	// TaskID identifies the running or finished task; uuid.Nil when idle.
	TaskID uuid.UUID
	// Steps is the number of times the task has been stepped.
	Steps int
	// ResultLen is the length of the response waiting to be collected.
	ResultLen int
}

// Status returns a snapshot of e.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Phase:     e.phase,
		TaskID:    e.id,
		Steps:     e.steps,
		ResultLen: len(e.result),
	}
}

// Name returns the name of e, as set by [WithName].
func (e *Executor) Name() string {
	return e.name
}

func (e *Executor) reset() {
	e.phase = PhaseIdle
	e.task = nil
	e.busy = false
	e.result = nil
	e.id = uuid.Nil
	e.steps = 0
}

func closeWorkflow(w Workflow, id uuid.UUID) {
	if c, ok := w.(io.Closer); ok {
		log.WithError(c.Close()).Warning("closing discarded workflow", "task", id)
	}
}
