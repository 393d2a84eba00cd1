package usbtask

const (
	doEnd = iota
	doYield
	doAwait
	doSwitch
)

const (
	flagAwaiting = 1 << iota
	flagEnded
)

// A Task is a [Workflow] made of [Operation] functions, stackless and
// cooperative.
//
// A Task is created with a function called Operation.
// A Task's job is to complete it.
// Every time the Task is stepped, it calls the Operation function with the
// Task as the argument.
// The return value determines whether to end the Task, with a response, or
// to yield it so that it could resume on a later step.
//
// A Task can await some [Event] (e.g. a [Signal] or a [State]).
// While awaiting, stepping the Task is cheap: the Operation is not called
// again until one of the awaited Events notifies.
//
// A Task can also switch to work on another Operation according to the
// return value of the Operation function.
// A Task can switch from one Operation to another until an Operation ends it.
type Task struct {
	op     Operation
	flag   uint8
	deps   map[Event]uint64
	defers []func()
	output []byte
}

// NewTask creates a [Task] to work on op.
func NewTask(op Operation) *Task {
	if op == nil {
		panic("NewTask(nil): undefined behavior")
	}
	return &Task{op: op}
}

// TaskFactory returns a [Factory] that creates a [Task] for each request,
// working on the Operation that f returns for the request bytes.
func TaskFactory(f func(input []byte) Operation) Factory {
	return func(input []byte) Workflow {
		return NewTask(f(input))
	}
}

// Step runs t until it ends or yields.
//
// Step implements [Workflow].
// Stepping an ended Task returns its response again.
func (t *Task) Step() Outcome {
	if t.flag&flagEnded != 0 {
		return Done(t.output)
	}

	if t.flag&flagAwaiting != 0 && !t.notified() {
		return Pending()
	}

	var res Result

	for {
		t.runDefers()
		t.clearDeps()

		t.flag &^= flagAwaiting

		res = t.op(t)

		if res.op != nil {
			t.op = res.op
		}

		if res.action != doSwitch {
			break
		}
	}

	switch res.action {
	case doEnd:
		t.output = res.output
		t.end()
		return Done(res.output)
	case doAwait:
		t.flag |= flagAwaiting
	}

	return Pending()
}

// Close ends t without a response, calling every function that has been
// deferred and not yet called.
//
// An [Executor] calls Close when it discards t, e.g. on cancellation.
// Close always returns nil.
func (t *Task) Close() error {
	t.end()
	return nil
}

func (t *Task) end() {
	if t.flag&flagEnded != 0 {
		return
	}

	t.flag |= flagEnded
	t.flag &^= flagAwaiting

	t.clearDeps()
	t.runDefers()
}

func (t *Task) notified() bool {
	for d, v := range t.deps {
		if d.version() != v {
			return true
		}
	}
	return false
}

func (t *Task) clearDeps() {
	clear(t.deps)
}

func (t *Task) runDefers() {
	for len(t.defers) != 0 {
		defers := t.defers
		t.defers = nil
		for i := len(defers) - 1; i >= 0; i-- {
			defers[i]()
		}
	}
}

// Ended reports whether t has ended, either with a response or by Close.
func (t *Task) Ended() bool {
	return t.flag&flagEnded != 0
}

// Watch watches some Events so that, when any of them notifies, an awaiting
// t resumes.
//
// Watches only last for the current run of the Operation: every time t
// resumes or switches, the watch list is cleared.
func (t *Task) Watch(s ...Event) {
	deps := t.deps
	if deps == nil {
		deps = make(map[Event]uint64)
		t.deps = deps
	}

	for _, d := range s {
		if _, ok := deps[d]; !ok {
			deps[d] = d.version()
		}
	}
}

// Defer adds a function call when t resumes or ends, when t is switching to
// work on another [Operation], or when t is closed.
//
// Deferred functions are called in LIFO order, like defer.
func (t *Task) Defer(f func()) {
	t.defers = append(t.defers, f)
}

// Result is the type of the return value of an [Operation] function.
// A Result determines what next for a [Task] to do after calling an Operation
// function.
//
// A Result can be created by calling one of the following method of Task:
//   - [Task.End]: for ending a Task with a response;
//   - [Task.Await]: for yielding a Task until some Events notify;
//   - [Task.Yield]: for yielding a Task with another Operation to which will
//     be switched on the next step;
//   - [Task.Switch]: for switching to another Operation.
type Result struct {
	action int
	op     Operation
	output []byte
}

// End returns a [Result] that will cause t to end with output as its
// response, or switch to work on another [Operation] in a [Chain].
func (t *Task) End(output []byte) Result {
	return Result{action: doEnd, output: output}
}

// Await returns a [Result] that will cause t to yield until one of the
// watched Events notifies.
// Await also accepts additional Events to be awaited for.
//
// A Task that awaits without watching anything never resumes; it stays
// pending until it is canceled.
func (t *Task) Await(s ...Event) Result {
	if len(s) != 0 {
		t.Watch(s...)
	}
	return Result{action: doAwait}
}

// Yield returns a [Result] that will cause t to yield.
// op becomes the current Operation of t so that, on the next step, op is
// called instead.
func (t *Task) Yield(op Operation) Result {
	if op == nil {
		panic("Yield(nil): undefined behavior")
	}
	return Result{action: doYield, op: op}
}

// Switch returns a [Result] that will cause t to switch to work on op.
// t will be reset and op will be called immediately as the current Operation
// of t.
func (t *Task) Switch(op Operation) Result {
	if op == nil {
		panic("Switch(nil): undefined behavior")
	}
	return Result{action: doSwitch, op: op}
}

// An Operation is a piece of work that a [Task] is given to do.
// The return value of an Operation, a [Result], determines what next for
// a Task to do.
type Operation func(t *Task) Result

// Chain returns an [Operation] that will work on each of the provided
// Operations in sequence.
// When one Operation completes, Chain works on another.
// The response of the last Operation becomes the response of Chain.
func Chain(s ...Operation) Operation {
	var op Operation
	var output []byte
	return func(t *Task) Result {
		if op == nil {
			if len(s) == 0 {
				return t.End(output)
			}
			op, s = s[0], s[1:]
		}
		switch res := op(t); res.action {
		case doEnd:
			op, output = nil, res.output
			return Result{action: doSwitch}
		case doYield, doAwait, doSwitch:
			if res.op != nil {
				op = res.op
			}
			return Result{action: res.action}
		default:
			panic("internal error: unknown action")
		}
	}
}

// Do returns an [Operation] that calls f, and then completes without
// a response.
func Do(f func()) Operation {
	return func(t *Task) Result {
		f()
		return t.End(nil)
	}
}

// Respond returns an [Operation] that completes with the response f returns.
func Respond(f func() []byte) Operation {
	return func(t *Task) Result {
		return t.End(f())
	}
}

// Never returns an [Operation] that never completes.
// Operations in a [Chain] after Never are never getting worked on.
func Never() Operation {
	return func(t *Task) Result {
		return t.Await()
	}
}

// Then returns an [Operation] that first works on op, then switches to
// work on next after op completes.
// The response of op is dropped.
//
// To chain multiple Operations, use [Chain] function.
func (op Operation) Then(next Operation) Operation {
	if next == nil {
		panic("Then(nil): undefined behavior")
	}
	return func(t *Task) Result {
		switch res := op(t); res.action {
		case doEnd:
			return Result{action: doSwitch, op: next}
		case doYield, doAwait, doSwitch:
			if res.op != nil {
				op = res.op
			}
			return Result{action: res.action}
		default:
			panic("internal error: unknown action")
		}
	}
}
