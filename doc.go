// Package usbtask is a single-slot executor for long-running requests of
// a request/response command interface, such as a USB device protocol.
//
// Some requests cannot be answered right away: the device has to ask its user
// to confirm something, or to enter a password, and wait. The component that
// polls for incoming commands must not block meanwhile, or the host would see
// a dead device. An [Executor] lets such a request run as a task next to
// the polling loop, cooperatively, on the same goroutine.
//
// # The Slot
//
// An Executor holds at most one task. Its slot is always in exactly one of
// three phases:
//   - [PhaseIdle]: no task, a new one can be spawned;
//   - [PhaseRunning]: a task has been spawned and has not finished yet;
//   - [PhaseResultReady]: the task has finished and its response waits to be
//     collected.
//
// Four operations move the slot from one phase to another:
//
//	                spawn                 advance (finished)
//	PhaseIdle ─────────────► PhaseRunning ─────────────► PhaseResultReady
//	    ▲                         │                              │
//	    └──────── cancel ─────────┘                              │
//	    └─────────────────────── copy response ──────────────────┘
//
// Every operation is defined in every phase. Asking for a response too early
// is an ordinary error ([ErrNotRunning], [ErrNotReady]) that a protocol
// translates into "busy, try again later". Spawning over a task that has not
// been collected, or collecting into a buffer too small for the response, is
// a bug in the caller and panics with a [*Fault].
//
// # Stepping Without Holding The Slot
//
// The polling loop calls [Executor.Advance] once per iteration. Advance takes
// the task out of the slot, steps it once, and puts it back, or stores its
// response if the step finished it. While the task is stepping, the slot is
// not locked. A task is therefore free to look at the Executor that runs it,
// for example to find out about its own phase, without deadlocking.
//
// # Workflows and Tasks
//
// What an Executor runs is a [Workflow]: anything with a Step method that
// either reports [Pending] or returns [Done] with a response. Workflows are
// created per request by a [Factory].
//
// A [Task] is the Workflow this package ships. It is written as a chain of
// [Operation] functions, stackless, much like a state machine. An Operation
// can end the Task with a response, yield it until the next step, or await
// some [Event] (e.g. a [State] holding user input), in which case stepping
// the Task costs nothing until the Event notifies.
//
// # Single-Threaded
//
// An Executor, and every Event its tasks watch, belongs to one goroutine.
// There is no preemption, no timeout and no retry: if a task is stuck, it is
// up to the caller to cancel it.
package usbtask
