package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eudr_ingestions_total",
		Help: "Ingestion and revalidation runs by kind and outcome",
	}, []string{"kind", "outcome"})
	WhispChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eudr_whisp_chunks_total",
		Help: "Chunks submitted to the WHISP service by result",
	}, []string{"result"})
	WhispChunkDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eudr_whisp_chunk_duration_ms",
		Help:    "WHISP chunk round trip in milliseconds",
		Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 1200000},
	})
	RecordsReconciledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eudr_records_reconciled_total",
		Help: "Farm records written by reconciliation, by action",
	}, []string{"action"})
	CompensationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eudr_compensations_total",
		Help: "Compensating actions executed on pipeline failure",
	}, []string{"step", "result"})
	AccessCodeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eudr_access_code_cache_total",
		Help: "Map access code cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(IngestionsTotal)
	prometheus.MustRegister(WhispChunksTotal)
	prometheus.MustRegister(WhispChunkDurationMs)
	prometheus.MustRegister(RecordsReconciledTotal)
	prometheus.MustRegister(CompensationsTotal)
	prometheus.MustRegister(AccessCodeCacheTotal)
}

func Handler() http.Handler { return promhttp.Handler() }
