package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
)

type healthCheck func(ctx context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks"`
}

// healthHandler は各ストアへの疎通確認を行い、監視系からのヘルスチェック要求に応える。
// 1つでも失敗すれば 503 と "degraded" を返す。
func healthHandler(logger *zap.Logger, checks map[string]healthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("ヘルスチェック失敗", zap.String("check", name), zap.Error(err))
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		resp.Time = time.Now().Format(time.RFC3339)
		common.WriteJSON(logger, w, status, resp)
	}
}
