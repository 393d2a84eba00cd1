package usbtask

import "errors"

var (
	// ErrNotRunning is returned by CopyResponse when there is no task and no
	// result to collect.
	ErrNotRunning = errors.New("usbtask: no task running")
	// ErrNotReady is returned by CopyResponse when a task is running but has
	// not finished yet. Callers usually answer "try again later".
	ErrNotReady = errors.New("usbtask: task not ready")
)

// A Fault is the panic value an [Executor] raises when it is used in a way
// that can only be a bug on the caller's side (e.g. spawning over a task that
// has not been collected), or when it detects that its slot was tampered with
// while a task was stepping.
//
// Faults are not meant to be recovered from in production code.
// They implement error so that tests and top-level crash reporting can
// inspect them with [errors.As].
type Fault struct {
	Op  string
	Msg string
}

func fault(op, msg string) *Fault {
	return &Fault{Op: op, Msg: msg}
}

func (f *Fault) Error() string {
	return "usbtask(" + f.Op + "): " + f.Msg
}
