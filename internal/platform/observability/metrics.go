package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandidatesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubecast_candidates_seen_total",
		Help: "The total number of candidates evaluated at ingestion",
	}, []string{"decision"})

	ItemsDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubecast_items_downloaded_total",
		Help: "The total number of audio downloads by outcome",
	}, []string{"status"})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubecast_items_processed_total",
		Help: "The total number of items processed by the file pipeline",
	}, []string{"status"})

	ItemsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubecast_items_posted_total",
		Help: "The total number of publish attempts by outcome",
	}, []string{"status"})

	PublishQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tubecast_publish_queue_size",
		Help: "Number of active unposted items in the publish queue",
	})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tubecast_tool_duration_seconds",
		Help:    "Duration of external tool invocations",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"tool"})
)
