// Package metrics exposes usbtask executor activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/b97tsk/usbtask"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registry usbtaskd serves on /metrics. It is nil until Init
// is called.
var Registry *prometheus.Registry

// Init creates Registry.
func Init() {
	Registry = prometheus.NewRegistry()
}

var _ usbtask.Observer = (*Observer)(nil)

// Observer counts the lifecycle transitions of executors.
// A nil *Observer counts nothing.
type Observer struct {
	spawned       *prometheus.CounterVec
	steps         *prometheus.CounterVec
	collected     *prometheus.CounterVec
	cancelled     *prometheus.CounterVec
	panicked      *prometheus.CounterVec
	responseBytes *prometheus.HistogramVec
}

// New creates an [Observer] and registers its metrics with reg.
func New(reg prometheus.Registerer) (o *Observer, err error) {
	o = &Observer{
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbtask_spawned_total",
			Help: "number of tasks spawned",
		}, []string{"executor"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbtask_steps_total",
			Help: "number of task steps, by whether the step finished the task",
		}, []string{"executor", "finished"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbtask_collected_total",
			Help: "number of responses collected",
		}, []string{"executor"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbtask_cancelled_total",
			Help: "number of running tasks canceled",
		}, []string{"executor"}),
		panicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usbtask_panicked_total",
			Help: "number of tasks dropped because they panicked",
		}, []string{"executor"}),
		responseBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usbtask_response_bytes",
			Help:    "size of collected responses",
			Buckets: prometheus.ExponentialBuckets(16, 4, 6),
		}, []string{"executor"}),
	}
	for _, c := range []prometheus.Collector{
		o.spawned,
		o.steps,
		o.collected,
		o.cancelled,
		o.panicked,
		o.responseBytes,
	} {
		err = reg.Register(c)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Spawned counts a spawned task.
func (o *Observer) Spawned(executor string, _ uuid.UUID) {
	if o == nil {
		return
	}
	o.spawned.WithLabelValues(executor).Inc()
}

// Stepped counts a step, labelled by whether it finished the task.
func (o *Observer) Stepped(executor string, _ uuid.UUID, ready bool) {
	if o == nil {
		return
	}
	o.steps.WithLabelValues(executor, strconv.FormatBool(ready)).Inc()
}

// Collected counts a collected response and records its size.
func (o *Observer) Collected(executor string, _ uuid.UUID, n int) {
	if o == nil {
		return
	}
	o.collected.WithLabelValues(executor).Inc()
	o.responseBytes.WithLabelValues(executor).Observe(float64(n))
}

// Cancelled counts a canceled task.
func (o *Observer) Cancelled(executor string, _ uuid.UUID) {
	if o == nil {
		return
	}
	o.cancelled.WithLabelValues(executor).Inc()
}

// Panicked counts a task dropped because it panicked.
func (o *Observer) Panicked(executor string, _ uuid.UUID) {
	if o == nil {
		return
	}
	o.panicked.WithLabelValues(executor).Inc()
}
