package blockvalidator

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the counters the original Rust chain_sync/metrics.rs
// module exposes around block validation: a total processed counter and a
// rejections-by-reason counter, both labelled so a dashboard can break
// down failures by Kind without scraping logs.
var (
	blocksValidatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chainsync",
		Subsystem: "blockvalidator",
		Name:      "blocks_validated_total",
		Help:      "Blocks that completed the validation pipeline successfully.",
	})

	blocksRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainsync",
		Subsystem: "blockvalidator",
		Name:      "blocks_rejected_total",
		Help:      "Blocks rejected by the validation pipeline, labelled by failure kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(blocksValidatedTotal, blocksRejectedTotal)
}

func observeRejection(err error) {
	ve, ok := err.(*Error)
	if !ok {
		blocksRejectedTotal.WithLabelValues("unknown").Inc()
		return
	}
	blocksRejectedTotal.WithLabelValues(ve.Kind.String()).Inc()
}
