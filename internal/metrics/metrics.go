package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "cycles_total",
		Help:      "Total indexing cycles started",
	})

	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "cycle_errors_total",
		Help:      "Total indexing cycles aborted by an error",
	})

	TransfersInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "transfers_inserted_total",
		Help:      "Total new transfer records inserted",
	})

	LogsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "logs_dropped_total",
		Help:      "Total logs dropped due to decode or header lookup failures",
	})

	ReorgsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "reorgs_detected_total",
		Help:      "Total chain reorganizations detected and rolled back",
	})

	RecordsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "records_evicted_total",
		Help:      "Total records deleted by retention enforcement",
	})

	RPCRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_indexer",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Total RPC calls retried after a transient failure",
	})

	FrontierBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "frontier_block",
		Help:      "Highest block number currently present in the store",
	})

	StoredRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "transfer_indexer",
		Subsystem: "engine",
		Name:      "stored_records",
		Help:      "Transfer records in the store after the last cycle",
	})
)
