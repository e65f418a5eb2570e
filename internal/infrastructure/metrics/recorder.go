// Package metrics exports ledger activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/yield_staking/internal/domain"
)

const namespace = "yield_staking"

// Recorder is an EventPublisher that counts operations and tracks the ledger
// totals carried by each event. It owns its registry so several recorders can
// coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	volume        *prometheus.CounterVec
	penalties     *prometheus.CounterVec
	totalStaked   *prometheus.GaugeVec
	accPerShare   *prometheus.GaugeVec
	insuranceFund *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Committed ledger operations by kind and product.",
		}, []string{"kind", "product"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_total",
			Help:      "Amounts moved by committed operations.",
		}, []string{"kind", "product"}),
		penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_withdrawal_penalties_total",
			Help:      "Early-withdrawal penalties routed to the insurance fund.",
		}, []string{"product"}),
		totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_staked",
			Help:      "Total principal staked per product.",
		}, []string{"product"}),
		accPerShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acc_reward_per_share",
			Help:      "Scaled reward accumulator per product.",
		}, []string{"product"}),
		insuranceFund: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "insurance_fund",
			Help:      "Insurance reserve per product.",
		}, []string{"product"}),
	}
	r.registry.MustRegister(
		r.operations, r.volume, r.penalties,
		r.totalStaked, r.accPerShare, r.insuranceFund,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Publish(evt domain.Event) {
	kind, product := string(evt.Kind), string(evt.Product)
	r.operations.WithLabelValues(kind, product).Inc()
	r.volume.WithLabelValues(kind, product).Add(float64(evt.Amount))
	if evt.Penalty > 0 {
		r.penalties.WithLabelValues(product).Add(float64(evt.Penalty))
	}
	// governance events carry no ledger totals
	if evt.Product == "" || evt.Kind == domain.EventVoted {
		return
	}
	r.totalStaked.WithLabelValues(product).Set(float64(evt.TotalStaked))
	r.accPerShare.WithLabelValues(product).Set(float64(evt.AccRewardPerShare))
	r.insuranceFund.WithLabelValues(product).Set(float64(evt.InsuranceFund))
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
