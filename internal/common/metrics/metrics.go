// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_completed_total",
			Help: "Total number of discovery runs by terminal status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	CandidatesExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_candidates_excluded_total",
			Help: "Candidates excluded from runs by error code",
		},
		[]string{"error_code"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_provider_calls_total",
			Help: "Market-intelligence provider calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	BriefsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_briefs_generated_total",
			Help: "Collaboration briefs by status and backend used",
		},
		[]string{"status", "backend"},
	)

	CRMPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_crm_pushes_total",
			Help: "Placement pushes to CRM by result",
		},
		[]string{"result"},
	)
)
