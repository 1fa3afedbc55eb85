package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_runs_started_total",
		Help: "The total number of started orchestration runs",
	}, []string{"kind"})

	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_runs_finished_total",
		Help: "The total number of runs that reached a terminal phase",
	}, []string{"kind", "outcome"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txflow_run_duration_seconds",
		Help:    "Time from start to terminal phase",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"kind"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "txflow_active_runs",
		Help: "The number of runs currently in progress",
	})

	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_phase_transitions_total",
		Help: "Number of transitions into each phase",
	}, []string{"phase"})

	RunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_run_errors_total",
		Help: "Total number of run failures by phase and error kind",
	}, []string{"phase", "error_kind"})

	ConcurrentRunRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txflow_concurrent_run_rejections_total",
		Help: "Starts rejected because a run was already active for the same owner and target",
	})

	ApprovalsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txflow_approvals_skipped_total",
		Help: "Runs where the existing allowance covered the action",
	})

	ConfirmationWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txflow_confirmation_wait_seconds",
		Help:    "Time spent waiting for a transaction to be mined",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"step", "status"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_submissions_total",
		Help: "Transactions handed to the chain by method and result",
	}, []string{"method", "result"})

	GasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "txflow_gas_used",
		Help:    "Gas used by mined transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // Start at 21000 with 10 buckets doubling in size
	})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "txflow_gas_price_gwei",
		Help: "Gas price used for the last submission in gwei",
	})

	IndexerQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txflow_indexer_queries_total",
		Help: "Indexer status queries by result",
	}, []string{"result"})

	IndexerAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "txflow_indexer_attempts",
		Help:    "Number of indexer queries needed per run",
		Buckets: prometheus.LinearBuckets(1, 2, 12),
	})

	IndexingDelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txflow_indexing_delayed_total",
		Help: "Runs completed before the indexer reported the transaction",
	})

	TokenBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "txflow_token_balance",
		Help: "Token balance of the signing account, in whole tokens",
	}, []string{"chain_id", "token"})

	CircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "txflow_indexer_circuit_state",
		Help: "Indexer circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)
