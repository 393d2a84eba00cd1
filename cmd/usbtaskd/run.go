package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/iidesho/bragi/sbragi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/b97tsk/usbtask"
	"github.com/b97tsk/usbtask/hww"
	"github.com/b97tsk/usbtask/internal/config"
	"github.com/b97tsk/usbtask/metrics"
	"github.com/b97tsk/usbtask/workflow"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

// API ids, the first byte of a request payload.
const (
	apiEcho    byte = 0x01
	apiConfirm byte = 0x02
)

var errUnknownCommand = errors.New("unknown command")

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	metrics.Init()
	obs, err := metrics.New(metrics.Registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	d := newDaemon(cfg, os.Stdout, usbtask.WithObserver(obs))

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			log.WithError(srv.Shutdown(shutdownCtx)).Debug("metrics server shut down")
		}()
	}

	log.Info("usbtaskd started",
		"executor", cfg.Name,
		"poll_interval", cfg.PollInterval,
		"max_response", cfg.MaxResponse,
		"metrics_addr", cfg.MetricsAddr,
	)
	return d.serve(ctx, os.Stdin, cfg.PollInterval)
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("serving metrics", "addr", addr)
		}
	}()
	return srv
}

// daemon owns an executor. All of its methods must be called from the
// same goroutine.
type daemon struct {
	exec    *usbtask.Executor
	router  *workflow.Router
	handler *hww.Handler
	answer  *usbtask.State[workflow.Answer]
	out     io.Writer
	resp    []byte
}

func newDaemon(cfg *config.Config, out io.Writer, opts ...usbtask.Option) *daemon {
	answer := usbtask.NewState(workflow.AnswerNone)

	r := workflow.NewRouter()
	r.Handle(apiEcho, workflow.Echo())
	r.Handle(apiConfirm, workflow.Confirm(answer, prompter{out}))

	exec := usbtask.New(append([]usbtask.Option{usbtask.WithName(cfg.Name)}, opts...)...)
	h := hww.New(exec, r.Factory(), hww.WithMaxResponse(cfg.MaxResponse))

	return &daemon{
		exec:    exec,
		router:  r,
		handler: h,
		answer:  answer,
		out:     out,
		resp:    make([]byte, 1+h.MaxResponse()),
	}
}

// serve reads commands from in until it is exhausted or ctx is done,
// advancing the running request every interval in between.
func (d *daemon) serve(ctx context.Context, in io.Reader, interval time.Duration) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(in)
		for s.Scan() {
			select {
			case lines <- s.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := s.Err(); err != nil {
			log.WithError(err).Error("reading commands")
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.exec.Cancel()
			return nil
		case line, ok := <-lines:
			if !ok {
				d.exec.Cancel()
				return nil
			}
			if err := d.handle(line); err != nil {
				fmt.Fprintf(d.out, "! %v\n", err)
			}
		case <-ticker.C:
			d.advance()
		}
	}
}

// advance steps the running request.
func (d *daemon) advance() {
	defer d.recoverRequest()
	d.exec.Advance()
}

// recoverRequest logs a panicking request and lets the daemon go on.
// The executor has already dropped the request by the time it panics.
func (d *daemon) recoverRequest() {
	v := recover()
	if v == nil {
		return
	}
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	log.WithError(err).Error("request panicked", "executor", d.exec.Name())
	fmt.Fprintln(d.out, "! request dropped")
}

func (d *daemon) handle(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "new":
		payload, err := hex.DecodeString(strings.Join(fields[1:], ""))
		if err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return d.request(append([]byte{hww.OpNew}, payload...))
	case "retry":
		return d.request([]byte{hww.OpRetry})
	case "cancel":
		return d.request([]byte{hww.OpCancel})
	case "yes":
		d.answer.Set(workflow.AnswerYes)
	case "no":
		d.answer.Set(workflow.AnswerNo)
	case "status":
		st := d.exec.Status()
		fmt.Fprintf(d.out, "# %s phase=%s task=%s steps=%d result=%d\n",
			d.exec.Name(), st.Phase, st.TaskID, st.Steps, st.ResultLen)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, fields[0])
	}
	return nil
}

func (d *daemon) request(req []byte) error {
	defer d.recoverRequest()
	n, err := d.handler.Process(req, d.resp)
	if err != nil {
		return err
	}
	log.Trace("processed request", "op", req[0], "status", d.resp[0], "len", n)
	fmt.Fprintf(d.out, "< %x\n", d.resp[:n])
	return nil
}

type prompter struct {
	out io.Writer
}

func (p prompter) Show(text string) { fmt.Fprintf(p.out, "? %s [yes/no]\n", text) }
func (p prompter) Clear()           { fmt.Fprintln(p.out, "? cleared") }
