package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK             = "ok"
	resultEstimateFailed = "estimate_failed"
	resultFeeFailed      = "fee_failed"
	resultSendFailed     = "send_failed"
	resultReverted       = "reverted"
)

var limitOrderExecutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flatcoin_keeper",
		Subsystem: "executor",
		Name:      "limit_order_executions_total",
		Help:      "executeLimitOrder attempts by outcome",
	},
	[]string{"result"},
)

// estimateFailures is labelled with the decoded contract error name; the set
// is bounded by the error ABI plus "unknown".
var estimateFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flatcoin_keeper",
		Subsystem: "executor",
		Name:      "estimate_gas_failures_total",
		Help:      "Gas estimation failures by decoded revert name",
	},
	[]string{"error_name"},
)

var feeQueryFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "flatcoin_keeper",
		Subsystem: "executor",
		Name:      "priority_fee_query_failures_total",
		Help:      "Failed eth_maxPriorityFeePerGas calls, including retried ones",
	},
)

var positionReads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flatcoin_keeper",
		Subsystem: "executor",
		Name:      "position_reads_total",
		Help:      "Viewer getPositionData calls by kind and outcome",
	},
	[]string{"kind", "result"},
)

var executionLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "flatcoin_keeper",
		Subsystem: "executor",
		Name:      "limit_order_execution_seconds",
		Help:      "Time from gas estimate to mined receipt",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	},
)

func errorNameLabel(name string) string {
	if name == "" {
		return "unknown"
	}
	// Text passed through unchanged by the decoder is not a contract error name.
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "unknown"
		}
	}
	return name
}

func readResult(err error) string {
	if err != nil {
		return "error"
	}
	return resultOK
}
