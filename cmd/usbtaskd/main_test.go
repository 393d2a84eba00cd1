package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/b97tsk/usbtask"
	"github.com/b97tsk/usbtask/internal/config"
)

func newTestDaemon() (*daemon, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Name = "test"
	return newDaemon(cfg, &out), &out
}

func script(t *testing.T, d *daemon, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if line == "tick" {
			d.advance()
			continue
		}
		if err := d.handle(line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

func TestDaemon(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			"Echo",
			[]string{"new 01 68 69"},
			"< 006869\n",
		},
		{
			"ConfirmYes",
			[]string{"new 02ab", "retry", "yes", "tick", "retry", "retry"},
			"? confirm ab? [yes/no]\n< 01\n< 01\n? cleared\n< 0001ab\n< 03\n",
		},
		{
			"ConfirmNo",
			[]string{"new 02ab", "no", "tick", "retry"},
			"? confirm ab? [yes/no]\n< 01\n? cleared\n< 0000\n",
		},
		{
			"Busy",
			[]string{"new 02", "new 01", "cancel", "cancel"},
			"? confirm ? [yes/no]\n< 01\n< 02\n? cleared\n< 00\n< 03\n",
		},
		{
			"UnknownAPI",
			[]string{"new 09"},
			"< 00ee\n",
		},
		{
			"Idle",
			[]string{"retry", "", "cancel"},
			"< 03\n< 03\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, out := newTestDaemon()
			script(t, d, tt.lines...)
			if got := out.String(); got != tt.want {
				t.Errorf("output:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestDaemon_BadCommands(t *testing.T) {
	d, _ := newTestDaemon()
	if err := d.handle("new zz"); err == nil {
		t.Error("expected error for bad payload")
	}
	if err := d.handle("bogus"); !errors.Is(err, errUnknownCommand) {
		t.Errorf("expected errUnknownCommand, got %v", err)
	}
	if got := d.exec.Phase(); got != usbtask.PhaseIdle {
		t.Errorf("Phase=%v, want idle", got)
	}
}

func TestDaemon_RequestPanics(t *testing.T) {
	d, out := newTestDaemon()
	d.exec.Spawn(func([]byte) usbtask.Workflow {
		return usbtask.WorkflowFunc(func() usbtask.Outcome { panic("boom") })
	}, nil)
	d.advance()

	if got := out.String(); got != "! request dropped\n" {
		t.Errorf("output=%q", got)
	}
	if got := d.exec.Phase(); got != usbtask.PhaseIdle {
		t.Errorf("Phase=%v, want idle", got)
	}
	script(t, d, "new 0101")
	if got := out.String(); !strings.HasSuffix(got, "< 0001\n") {
		t.Errorf("output=%q", got)
	}
}

func TestDaemon_NewPanics(t *testing.T) {
	d, out := newTestDaemon()
	d.router.Handle(0x7f, func([]byte) usbtask.Workflow {
		return usbtask.WorkflowFunc(func() usbtask.Outcome { panic("boom") })
	})

	script(t, d, "new 7f", "retry", "new 0101")

	if got, want := out.String(), "! request dropped\n< 03\n< 0001\n"; got != want {
		t.Errorf("output=%q, want %q", got, want)
	}
}

func TestDaemon_OversizedResponse(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.MaxResponse = 2
	d := newDaemon(cfg, &out)

	script(t, d, "new 01 010203", "cancel", "new 01 0102")

	if got, want := out.String(), "< 03\n< 03\n< 000102\n"; got != want {
		t.Errorf("output=%q, want %q", got, want)
	}
	if got := d.exec.Phase(); got != usbtask.PhaseIdle {
		t.Errorf("Phase=%v, want idle", got)
	}
}

func TestDaemon_Serve(t *testing.T) {
	d, out := newTestDaemon()
	in := strings.NewReader("new 016869\nbogus\nnew 02\nstatus\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.serve(ctx, in, time.Hour); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	want := []string{
		"< 006869",
		"! unknown command: bogus",
		"? confirm ? [yes/no]",
		"< 01",
	}
	if len(lines) != len(want)+2 {
		t.Fatalf("output:\n%s", out.String())
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d=%q, want %q", i, lines[i], w)
		}
	}
	if !strings.HasPrefix(lines[4], "# test phase=running task=") {
		t.Errorf("status line=%q", lines[4])
	}
	// The running request is canceled once input is exhausted.
	if lines[5] != "? cleared" {
		t.Errorf("last line=%q, want prompt cleared", lines[5])
	}
	if got := d.exec.Phase(); got != usbtask.PhaseIdle {
		t.Errorf("Phase=%v, want idle", got)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"trace", "debug", "INFO", "warning", "error"} {
		if _, err := parseLevel(s); err != nil {
			t.Errorf("parseLevel(%q): %v", s, err)
		}
	}
	if lvl, _ := parseLevel("warn"); lvl.Level() != slog.LevelWarn {
		t.Errorf("warn=%v", lvl)
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
