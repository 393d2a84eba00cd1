package usbtask_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/b97tsk/usbtask"
)

func TestTask(t *testing.T) {
	t.Run("End", func(t *testing.T) {
		task := usbtask.NewTask(func(t *usbtask.Task) usbtask.Result {
			return t.End([]byte("ok"))
		})
		out := task.Step()
		if !out.Ready() || string(out.Output()) != "ok" {
			t.Fatalf("Step=%+v, want Done(ok)", out)
		}
		if !task.Ended() {
			t.Fatal("task did not end")
		}
		if out := task.Step(); !out.Ready() || string(out.Output()) != "ok" {
			t.Fatal("stepping an ended task did not return its response again")
		}
	})
	t.Run("Yield", func(t *testing.T) {
		var trace []string
		task := usbtask.NewTask(func(t *usbtask.Task) usbtask.Result {
			trace = append(trace, "first")
			return t.Yield(func(t *usbtask.Task) usbtask.Result {
				trace = append(trace, "second")
				return t.End(nil)
			})
		})
		if task.Step().Ready() {
			t.Fatal("task finished on its first step")
		}
		if !task.Step().Ready() {
			t.Fatal("task did not finish on its second step")
		}
		if !slices.Equal(trace, []string{"first", "second"}) {
			t.Fatalf("trace=%v", trace)
		}
	})
	t.Run("Switch", func(t *testing.T) {
		task := usbtask.NewTask(func(t *usbtask.Task) usbtask.Result {
			return t.Switch(func(t *usbtask.Task) usbtask.Result {
				return t.End([]byte{1})
			})
		})
		if out := task.Step(); !out.Ready() || !bytes.Equal(out.Output(), []byte{1}) {
			t.Fatalf("Step=%+v, want Done([1])", out)
		}
	})
	t.Run("Await", func(t *testing.T) {
		answer := usbtask.NewState("")
		runs := 0
		task := usbtask.NewTask(func(t *usbtask.Task) usbtask.Result {
			runs++
			if v := answer.Get(); v != "" {
				return t.End([]byte(v))
			}
			return t.Await(answer)
		})
		for range 5 {
			if task.Step().Ready() {
				t.Fatal("task finished without an answer")
			}
		}
		if runs != 1 {
			t.Fatalf("runs=%d, want 1 while nothing notified", runs)
		}
		answer.Set("yes")
		if out := task.Step(); !out.Ready() || string(out.Output()) != "yes" {
			t.Fatalf("Step=%+v, want Done(yes)", out)
		}
		if runs != 2 {
			t.Fatalf("runs=%d, want 2", runs)
		}
	})
	t.Run("Defer", func(t *testing.T) {
		var trace []string
		task := usbtask.NewTask(func(t *usbtask.Task) usbtask.Result {
			t.Defer(func() { trace = append(trace, "a") })
			t.Defer(func() { trace = append(trace, "b") })
			return t.Await()
		})
		task.Step()
		if len(trace) != 0 {
			t.Fatalf("deferred functions ran early: %v", trace)
		}
		if err := task.Close(); err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(trace, []string{"b", "a"}) {
			t.Fatalf("trace=%v, want [b a]", trace)
		}
		task.Close()
		if len(trace) != 2 {
			t.Fatalf("Close ran deferred functions twice: %v", trace)
		}
	})
}

func TestChain(t *testing.T) {
	ready := usbtask.NewState(false)
	var trace []string

	task := usbtask.NewTask(usbtask.Chain(
		usbtask.Do(func() { trace = append(trace, "do") }),
		func(t *usbtask.Task) usbtask.Result {
			trace = append(trace, "await")
			if !ready.Get() {
				return t.Await(ready)
			}
			return t.End(nil)
		},
		usbtask.Respond(func() []byte { return []byte("done") }),
	))

	if task.Step().Ready() {
		t.Fatal("chain finished before the signal")
	}
	if task.Step().Ready() {
		t.Fatal("chain finished before the signal")
	}
	ready.Set(true)
	out := task.Step()
	if !out.Ready() || string(out.Output()) != "done" {
		t.Fatalf("Step=%+v, want Done(done)", out)
	}
	if !slices.Equal(trace, []string{"do", "await", "await"}) {
		t.Fatalf("trace=%v", trace)
	}
}

func TestThen(t *testing.T) {
	var first usbtask.Operation = func(t *usbtask.Task) usbtask.Result {
		return t.End([]byte("dropped"))
	}
	task := usbtask.NewTask(first.Then(usbtask.Respond(func() []byte { return []byte("kept") })))
	if out := task.Step(); !out.Ready() || string(out.Output()) != "kept" {
		t.Fatalf("Step=%+v, want Done(kept)", out)
	}
}

func TestNever(t *testing.T) {
	task := usbtask.NewTask(usbtask.Never())
	for range 10 {
		if task.Step().Ready() {
			t.Fatal("Never finished")
		}
	}
}

func TestTaskFactory(t *testing.T) {
	e := usbtask.New()
	e.Spawn(usbtask.TaskFactory(func(input []byte) usbtask.Operation {
		return usbtask.Respond(func() []byte { return append(input, '!') })
	}), []byte("hi"))
	e.Advance()

	dst := make([]byte, 3)
	if n, err := e.CopyResponse(dst); err != nil || string(dst[:n]) != "hi!" {
		t.Fatalf("CopyResponse=(%q, %v), want hi!", dst[:n], err)
	}
}

func TestTask_CanceledByExecutor(t *testing.T) {
	e := usbtask.New()

	released := false
	e.Spawn(usbtask.TaskFactory(func([]byte) usbtask.Operation {
		return func(t *usbtask.Task) usbtask.Result {
			t.Defer(func() { released = true })
			return t.Await()
		}
	}), nil)
	e.Advance()
	e.Cancel()

	if !released {
		t.Fatal("canceled task did not release its resources")
	}
}
