package cache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_cache_requests_total",
			Help: "Cache lookups by keyspace and result (hit, miss, error).",
		},
		[]string{"keyspace", "result"},
	)
	writeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_cache_write_errors_total",
			Help: "Failed cache writes and invalidations by keyspace.",
		},
		[]string{"keyspace"},
	)
)

// RegisterMetrics はキャッシュ関連のコレクタを reg に登録する。起動時に一度だけ呼ぶ。
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(requestsTotal, writeErrorsTotal)
}

// keyspace は "survey:12" → "survey" のようにキーの種別部分を取り出す。
func keyspace(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
