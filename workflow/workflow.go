// Package workflow provides the workflows served by usbtaskd.
package workflow

import (
	"fmt"

	"github.com/b97tsk/usbtask"
)

// Answer is the user's answer to a confirmation prompt.
type Answer int

const (
	AnswerNone Answer = iota
	AnswerYes
	AnswerNo
)

func (a Answer) String() string {
	switch a {
	case AnswerNone:
		return "none"
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return fmt.Sprintf("Answer(%d)", int(a))
	}
}

// Response bytes of Confirm.
const (
	Rejected byte = 0x00
	Accepted byte = 0x01
)

// Prompter shows a prompt to the user until it is cleared.
type Prompter interface {
	Show(text string)
	Clear()
}

// Echo returns a [usbtask.Factory] for a workflow that responds with its
// request.
func Echo() usbtask.Factory {
	return usbtask.TaskFactory(func(input []byte) usbtask.Operation {
		return usbtask.Respond(func() []byte { return input })
	})
}

// Confirm returns a [usbtask.Factory] for a workflow that asks the user to
// confirm its request, and waits for answer to be set.
//
// The response is Accepted followed by the request if the user said yes,
// or Rejected alone if the user said no. A previous answer is discarded
// when the workflow starts. The prompt is cleared when the user answers or
// when the workflow is canceled.
func Confirm(answer *usbtask.State[Answer], p Prompter) usbtask.Factory {
	return usbtask.TaskFactory(func(input []byte) usbtask.Operation {
		text := fmt.Sprintf("confirm %x?", input)
		wait := func(t *usbtask.Task) usbtask.Result {
			switch answer.Get() {
			case AnswerYes:
				return t.End(append([]byte{Accepted}, input...))
			case AnswerNo:
				return t.End([]byte{Rejected})
			}
			p.Show(text)
			t.Defer(p.Clear)
			return t.Await(answer)
		}
		return func(t *usbtask.Task) usbtask.Result {
			answer.Set(AnswerNone)
			return t.Switch(wait)
		}
	})
}
