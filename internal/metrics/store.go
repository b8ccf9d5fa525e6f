package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Store-related Prometheus metrics. These are defined in a standalone package to avoid
// import cycles between store adapters and HTTP packages.

var (
	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_op_duration_seconds",
		Help:    "Latencia de operaciones del port de persistencia",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter", "op"})

	StoreOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_op_errors_total",
		Help: "Errores del port por tipo de la taxonomía",
	}, []string{"adapter", "op", "kind"})

	StoreOpenStreams = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "store_open_change_streams",
		Help: "Change streams abiertos por adapter",
	}, []string{"adapter"})
)

// RegisterStore registers the store metrics on the given registry (or default if nil).
func RegisterStore(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{StoreOpDuration, StoreOpErrors, StoreOpenStreams} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
