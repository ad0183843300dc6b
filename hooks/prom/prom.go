// Package promhooks counts randselect events with Prometheus.
package promhooks

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/randselect"
)

// Hooks implements randselect.Hooks. Page ids are not used as labels.
type Hooks struct {
	invalidWeights prometheus.Counter
	dangling       prometheus.Counter
	bound          prometheus.Counter
	dropped        prometheus.Counter
	repaired       *prometheus.CounterVec
	populated      *prometheus.CounterVec
	selfHeal       *prometheus.CounterVec
	setRejected    prometheus.Counter
}

var _ randselect.Hooks = (*Hooks)(nil)

// New registers the counters with reg; nil registers with the default registry.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		invalidWeights: f.NewCounter(prometheus.CounterOpts{
			Name: "randselect_invalid_weights_total",
			Help: "Choices rendered as an error fragment because of invalid weights",
		}),
		dangling: f.NewCounter(prometheus.CounterOpts{
			Name: "randselect_dangling_tokens_total",
			Help: "Placeholder tokens dropped because their choice set was missing",
		}),
		bound: f.NewCounter(prometheus.CounterOpts{
			Name: "randselect_iteration_bound_total",
			Help: "Views where substitution hit the pass bound",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "randselect_bound_dropped_tokens_total",
			Help: "Tokens stripped after the pass bound was hit",
		}),
		repaired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "randselect_validation_repairs_total",
			Help: "Fast validation entries deleted after disagreeing with the exact flag",
		}, []string{"exact"}),
		populated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "randselect_validation_populated_total",
			Help: "Fast validation cache misses by source",
		}, []string{"source"}),
		selfHeal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "randselect_render_self_heal_total",
			Help: "Render cache entries deleted on read by reason",
		}, []string{"reason"}),
		setRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "randselect_provider_set_rejected_total",
			Help: "Render cache writes refused by the provider",
		}),
	}
}

func (h *Hooks) InvalidWeights(uint64, error) { h.invalidWeights.Inc() }

func (h *Hooks) DanglingToken(_ uint64, count int) { h.dangling.Add(float64(count)) }

func (h *Hooks) IterationBound(_ uint64, _, dropped int) {
	h.bound.Inc()
	h.dropped.Add(float64(dropped))
}

func (h *Hooks) ValidationRepaired(_ uint64, _, exact bool) {
	h.repaired.WithLabelValues(strconv.FormatBool(exact)).Inc()
}

func (h *Hooks) ValidationPopulated(_ uint64, _ bool, source string) {
	h.populated.WithLabelValues(source).Inc()
}

func (h *Hooks) RenderSelfHeal(_ string, reason string) { h.selfHeal.WithLabelValues(reason).Inc() }

func (h *Hooks) ProviderSetRejected(string) { h.setRejected.Inc() }
