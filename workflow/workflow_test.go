package workflow_test

import (
	"bytes"
	"testing"

	"github.com/b97tsk/usbtask"
	"github.com/b97tsk/usbtask/workflow"
)

type screen struct {
	shown   []string
	cleared int
}

func (s *screen) Show(text string) { s.shown = append(s.shown, text) }
func (s *screen) Clear()           { s.cleared++ }

func collect(t *testing.T, e *usbtask.Executor) []byte {
	t.Helper()
	dst := make([]byte, 64)
	n, err := e.CopyResponse(dst)
	if err != nil {
		t.Fatalf("CopyResponse err=%v", err)
	}
	return dst[:n]
}

func TestEcho(t *testing.T) {
	e := usbtask.New()
	e.Spawn(workflow.Echo(), []byte{1, 2, 3})
	e.Advance()
	if got := collect(t, e); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("response=%v, want [1 2 3]", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		answer workflow.Answer
		want   []byte
	}{
		{"Yes", workflow.AnswerYes, []byte{workflow.Accepted, 0xab}},
		{"No", workflow.AnswerNo, []byte{workflow.Rejected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := usbtask.NewState(workflow.AnswerYes) // stale answer from a previous prompt
			s := &screen{}

			e := usbtask.New()
			e.Spawn(workflow.Confirm(answer, s), []byte{0xab})
			e.Advance()
			e.Advance()

			if got := e.Phase(); got != usbtask.PhaseRunning {
				t.Fatalf("Phase=%v, want running", got)
			}
			if len(s.shown) != 1 || s.shown[0] != "confirm ab?" {
				t.Fatalf("shown=%q", s.shown)
			}

			answer.Set(tt.answer)
			e.Advance()

			if got := collect(t, e); !bytes.Equal(got, tt.want) {
				t.Fatalf("response=%x, want %x", got, tt.want)
			}
			if s.cleared != 1 {
				t.Fatalf("cleared=%d, want 1", s.cleared)
			}
		})
	}
}

func TestConfirm_Canceled(t *testing.T) {
	s := &screen{}
	e := usbtask.New()
	e.Spawn(workflow.Confirm(usbtask.NewState(workflow.AnswerNone), s), nil)
	e.Advance()
	if !e.Cancel() {
		t.Fatal("Cancel=false")
	}
	if s.cleared != 1 {
		t.Fatalf("cleared=%d, want 1", s.cleared)
	}
}

func TestRouter(t *testing.T) {
	r := workflow.NewRouter()
	r.Handle(0x01, workflow.Echo())

	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{"Routed", []byte{0x01, 'h', 'i'}, []byte("hi")},
		{"Unknown", []byte{0x09, 'h', 'i'}, []byte{workflow.UnknownAPI}},
		{"Empty", nil, []byte{workflow.UnknownAPI}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := usbtask.New()
			e.Spawn(r.Factory(), tt.input)
			e.Advance()
			if got := collect(t, e); !bytes.Equal(got, tt.want) {
				t.Fatalf("response=%x, want %x", got, tt.want)
			}
		})
	}
}

func TestAnswer_String(t *testing.T) {
	if got := workflow.AnswerYes.String(); got != "yes" {
		t.Fatalf("String()=%q", got)
	}
	if got := workflow.Answer(7).String(); got != "Answer(7)" {
		t.Fatalf("String()=%q", got)
	}
}
