package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsis_cache_hits_total",
			Help: "Total number of DSIS response cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsis_cache_misses_total",
			Help: "Total number of DSIS response cache misses",
		},
	)

	// CacheSize tracks bytes moved through the cache by direction
	CacheSize = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsis_cache_size_bytes",
			Help: "Bytes written to and read from the DSIS response cache",
		},
		[]string{"direction"}, // "read", "write"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsis_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
