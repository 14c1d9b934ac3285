package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Storefront build information.",
		},
		[]string{"service", "version", "commit"},
	)
)

// InitBuildInfo registers build_info once and sets it for this binary.
func InitBuildInfo(service, version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(service, version, commit).Set(1)
}
