package imaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapuscina_image_compressions_total",
		Help: "Image compressions by outcome",
	}, []string{"outcome"})
	rungs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zapuscina_image_compression_dimension",
		Help:    "Longer side chosen by the compression ladder",
		Buckets: []float64{640, 800, 1024, 1280},
	})
)
