// Package hww dispatches decoded requests of a hardware wallet style
// request/response protocol to a [usbtask.Executor].
//
// The host never waits for a long-running request. It sends OpNew with the
// request payload and gets the response right away if the request finished
// within one step, or StatusNotReady otherwise. It then keeps sending
// OpRetry until the response is there, or gives up with OpCancel.
//
// Framing and transport are not handled here: requests and responses are
// plain byte slices whose first byte is an op code or a status code.
package hww

import (
	"errors"

	"github.com/b97tsk/usbtask"
	"github.com/iidesho/bragi/sbragi"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

// Request op codes, the first byte of a request.
const (
	OpNew    byte = 0x00
	OpRetry  byte = 0x01
	OpCancel byte = 0x02
)

// Response status codes, the first byte of a response.
const (
	StatusAck      byte = 0x00
	StatusNotReady byte = 0x01
	StatusBusy     byte = 0x02
	StatusNack     byte = 0x03
)

// DefaultMaxResponse is the default size limit of a response payload.
const DefaultMaxResponse = 4096

var (
	// ErrEmptyRequest is returned by Process for a request without op code.
	ErrEmptyRequest = errors.New("hww: empty request")
	// ErrShortBuffer is returned by Process when the response buffer cannot
	// hold a status byte plus a response payload of the maximum size.
	ErrShortBuffer = errors.New("hww: response buffer too small")
)

// Handler turns requests into [usbtask.Executor] operations.
type Handler struct {
	exec        *usbtask.Executor
	api         usbtask.Factory
	maxResponse int
}

// Option configures a [Handler].
type Option func(*Handler)

// WithMaxResponse sets the size limit of a response payload.
// A bigger response is dropped and answered with StatusNack.
func WithMaxResponse(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxResponse = n
		}
	}
}

// New creates a [Handler] that spawns api on exec for every OpNew request.
func New(exec *usbtask.Executor, api usbtask.Factory, opts ...Option) *Handler {
	h := &Handler{
		exec:        exec,
		api:         api,
		maxResponse: DefaultMaxResponse,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// MaxResponse returns the size limit of a response payload.
func (h *Handler) MaxResponse() int {
	return h.maxResponse
}

// Process handles req and writes the response to resp, returning the
// number of bytes written.
//
// resp must be at least 1+MaxResponse() bytes long.
//
//   - OpNew: StatusBusy if a previous request has not been collected or
//     canceled. Otherwise the payload is spawned and stepped once; the
//     response follows as for OpRetry.
//   - OpRetry: StatusAck followed by the response, StatusNotReady if the
//     request is still running, StatusNack if there is nothing to collect
//     or the response is bigger than MaxResponse() and has been dropped.
//   - OpCancel: StatusAck if a running request was canceled, StatusNack
//     otherwise.
//
// Unknown op codes get StatusNack.
func (h *Handler) Process(req, resp []byte) (int, error) {
	if len(req) == 0 {
		return 0, ErrEmptyRequest
	}
	if len(resp) < 1+h.maxResponse {
		return 0, ErrShortBuffer
	}

	switch op := req[0]; op {
	case OpNew:
		if phase := h.exec.Phase(); phase != usbtask.PhaseIdle {
			log.Debug("rejecting request", "executor", h.exec.Name(), "phase", phase)
			resp[0] = StatusBusy
			return 1, nil
		}
		h.exec.Spawn(h.api, req[1:])
		h.exec.Advance()
		return h.collect(resp)
	case OpRetry:
		return h.collect(resp)
	case OpCancel:
		if h.exec.Cancel() {
			resp[0] = StatusAck
		} else {
			resp[0] = StatusNack
		}
		return 1, nil
	default:
		log.Debug("unknown op code", "op", op)
		resp[0] = StatusNack
		return 1, nil
	}
}

func (h *Handler) collect(resp []byte) (int, error) {
	if st := h.exec.Status(); st.Phase == usbtask.PhaseResultReady && st.ResultLen > h.maxResponse {
		// Drain it so the slot is free for the next request.
		n, _ := h.exec.CopyResponse(make([]byte, st.ResultLen))
		log.Warning("dropping oversized response", "executor", h.exec.Name(), "len", n, "max", h.maxResponse)
		resp[0] = StatusNack
		return 1, nil
	}

	n, err := h.exec.CopyResponse(resp[1 : 1+h.maxResponse])
	switch {
	case err == nil:
		resp[0] = StatusAck
		return 1 + n, nil
	case errors.Is(err, usbtask.ErrNotReady):
		resp[0] = StatusNotReady
	default:
		resp[0] = StatusNack
	}
	return 1, nil
}
