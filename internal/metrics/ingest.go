package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and generation Prometheus metrics.
var (
	IngestTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notedex",
			Name:      "ingest_tasks_total",
			Help:      "Total ingestion tasks by terminal status",
		},
		[]string{"status"}, // "completed" / "failed"
	)

	IngestTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notedex",
			Name:      "ingest_task_duration_seconds",
			Help:      "Ingestion task duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	ImportAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notedex",
			Name:      "import_attempts_total",
			Help:      "Total index import attempts",
		},
		[]string{"result"}, // "success" / "retry" / "error"
	)

	MindMapRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notedex",
			Name:      "mindmap_requests_total",
			Help:      "Total mind map generation requests",
		},
		[]string{"model", "status"},
	)

	MindMapRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notedex",
			Name:      "mindmap_request_duration_seconds",
			Help:      "Mind map generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	MindMapTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notedex",
			Name:      "mindmap_tokens_total",
			Help:      "Total completion tokens consumed by mind map generation",
		},
		[]string{"model", "type"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers ingestion and generation metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestTasksTotal)
	prometheus.MustRegister(IngestTaskDuration)
	prometheus.MustRegister(ImportAttemptsTotal)
	prometheus.MustRegister(MindMapRequestsTotal)
	prometheus.MustRegister(MindMapRequestDuration)
	prometheus.MustRegister(MindMapTokensTotal)
	ingestMetricsRegistered = true
}
