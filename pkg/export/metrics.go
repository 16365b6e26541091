package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dsis_export_records_total",
		Help: "Total CSV records written by exports",
	})

	exportFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_export_failures_total",
		Help: "Total failed exports by reason",
	}, []string{"reason"})

	s3UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_export_uploads_total",
		Help: "Total S3 uploads of finished exports by result",
	}, []string{"result"})
)
