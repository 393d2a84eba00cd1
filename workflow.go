package usbtask

// A Workflow is a suspendable computation that eventually produces a response.
//
// An [Executor] drives a Workflow by calling Step, once per [Executor.Advance].
// Step must not block: it either reports that the Workflow is not finished
// yet, by returning [Pending], or returns the response by returning [Done].
// After Step has returned a Done outcome, it is never called again.
//
// If a Workflow also implements io.Closer, Close is called when the
// Workflow is discarded before it finished, that is, when it is canceled or
// when it panicked. This is where a Workflow releases whatever it holds.
//
// [Task] is the implementation of Workflow shipped with this package, but any
// type with a Step method will do.
type Workflow interface {
	Step() Outcome
}

// A Factory creates a [Workflow] for a request.
//
// An [Executor] calls a Factory exactly once per spawned task, with its own
// copy of the request bytes, so the Workflow is free to keep input around.
type Factory func(input []byte) Workflow

// WorkflowFunc is an adapter to allow the use of an ordinary function as
// a [Workflow].
type WorkflowFunc func() Outcome

// Step calls f.
func (f WorkflowFunc) Step() Outcome {
	return f()
}

// An Outcome is the result of stepping a [Workflow] once.
// There are exactly two kinds of Outcomes: [Pending] and [Done].
type Outcome struct {
	output []byte
	ready  bool
}

// Pending returns an [Outcome] telling that a [Workflow] is not finished yet.
func Pending() Outcome {
	return Outcome{}
}

// Done returns an [Outcome] telling that a [Workflow] has finished with
// output as its response. A nil output is a valid, empty response.
func Done(output []byte) Outcome {
	return Outcome{output: output, ready: true}
}

// Ready reports whether o is a [Done] outcome.
func (o Outcome) Ready() bool {
	return o.ready
}

// Output returns the response carried by o, or nil if o is [Pending].
func (o Outcome) Output() []byte {
	return o.output
}
