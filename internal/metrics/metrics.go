package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatkb",
		Name:      "documents_ingested_total",
		Help:      "Documents that completed ingestion successfully.",
	})
	FragmentsEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatkb",
		Name:      "fragments_embedded_total",
		Help:      "Fragments embedded and written to the index.",
	})
	PagesCrawled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatkb",
		Name:      "pages_crawled_total",
		Help:      "Pages fetched and indexed during crawls.",
	})
	PagesErrored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatkb",
		Name:      "pages_errored_total",
		Help:      "Pages that failed to fetch or index during crawls.",
	})
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatkb",
		Name:      "search_requests_total",
		Help:      "Search requests by the retrieval tier that answered them.",
	}, []string{"tier"})
)
