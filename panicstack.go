package usbtask

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
)

// panicstack collects panics raised by workflows and the cleanups that run
// after them, so that all of them can be re-raised at once.
type panicstack []panicitem

func (ps panicstack) Repanic() {
	if len(ps) != 0 {
		panic(&PanicError{items: ps})
	}
}

func (ps *panicstack) Try(f func()) (ok bool) {
	defer func() {
		if !ok {
			v := recover()
			if v == nil {
				panic("usbtask: workflows must not call runtime.Goexit()")
			}
			ps.push(v, debug.Stack())
		}
	}()
	f()
	return true
}

func (ps *panicstack) push(v any, stack []byte) {
	s := *ps
	n := len(s)
	repanicked := n != 0 && equal(v, s[n-1].value)
	s = append(s, panicitem{v, stack, repanicked})
	*ps = s
}

func equal(a, b any) bool {
	defer func() { _ = recover() }()
	return a == b
}

type panicitem struct {
	value      any
	stack      []byte
	repanicked bool
}

// A PanicError is the panic value an [Executor] re-raises when a workflow
// panics while being stepped, or when one of its cleanups panics.
// By the time it is raised, the slot has already been reset to idle.
//
// Unwrap returns every panic value that is an error, so [errors.Is] and
// [errors.As] see through a PanicError.
type PanicError struct {
	items []panicitem
	errs  atomic.Pointer[[]error]
}

// Values returns the recovered panic values, in the order they were raised.
func (pe *PanicError) Values() []any {
	values := make([]any, len(pe.items))
	for i, p := range pe.items {
		values[i] = p.value
	}
	return values
}

func (pe *PanicError) Error() string {
	var b strings.Builder
	b.WriteString("usbtask: workflow panicked as follows:")
	for i, p := range pe.items {
		fmt.Fprintf(&b, "\n(%d/%d) panic: %v", i+1, len(pe.items), p.value)
		if p.repanicked {
			b.WriteString(" (repanicked)")
		}
		if p.stack != nil {
			b.WriteString("\n\n")
			b.Write(p.stack)
		}
	}
	return b.String()
}

func (pe *PanicError) Unwrap() []error {
	if p := pe.errs.Load(); p != nil {
		return *p
	}
	var errs []error
	for _, p := range pe.items {
		if err, ok := p.value.(error); ok {
			errs = append(errs, err)
		}
	}
	pe.errs.Store(&errs)
	return errs
}
