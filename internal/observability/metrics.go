package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors. HTTP traffic metrics live in the middleware package.
var (
	// RankChecks counts SERP lookups by engine and outcome (ranked|unranked|error).
	RankChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icp_rank_checks_total",
			Help: "SERP rank lookups by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)

	// UpstreamErrors counts failed calls to external APIs.
	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icp_upstream_errors_total",
			Help: "Failed upstream calls by upstream and kind (timeout|error).",
		},
		[]string{"upstream", "kind"},
	)

	// CycleOps counts blog-request cycle mutations by operation and result.
	CycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icp_cycle_operations_total",
			Help: "Blog-request cycle operations by op and result.",
		},
		[]string{"op", "result"},
	)

	// BlogPipelineRuns counts performance-blog pipeline runs by result
	// (done|skipped|failed).
	BlogPipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icp_blog_pipeline_runs_total",
			Help: "Performance-blog analysis runs by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RankChecks, UpstreamErrors, CycleOps, BlogPipelineRuns)
}
