package workflow

import (
	"github.com/b97tsk/usbtask"
	"github.com/iidesho/bragi/sbragi"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

// UnknownAPI is the response to a request for an API that is not routed.
const UnknownAPI byte = 0xee

// Router picks a workflow by the first byte of a request, the API id, and
// hands it the rest of the request.
type Router struct {
	routes map[byte]usbtask.Factory
}

// NewRouter creates an empty [Router].
func NewRouter() *Router {
	return &Router{routes: make(map[byte]usbtask.Factory)}
}

// Handle routes requests for api to f, replacing any previous route.
func (r *Router) Handle(api byte, f usbtask.Factory) {
	r.routes[api] = f
}

// Factory returns a [usbtask.Factory] dispatching requests to the routed
// workflows. Requests for unknown APIs finish immediately with UnknownAPI.
func (r *Router) Factory() usbtask.Factory {
	return func(input []byte) usbtask.Workflow {
		if len(input) != 0 {
			if f, ok := r.routes[input[0]]; ok {
				return f(input[1:])
			}
		}
		log.Debug("no route for request", "len", len(input))
		return usbtask.WorkflowFunc(func() usbtask.Outcome {
			return usbtask.Done([]byte{UnknownAPI})
		})
	}
}
