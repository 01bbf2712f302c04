package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ItemsResponse wraps list payloads.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// WriteJSON serializes payload to JSON with status and logs on failure.
func WriteJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Warn("JSON エンコードに失敗", zap.Error(err))
	}
}

// WriteError はエラー種別を HTTP ステータスへ対応付けて返す。5xx はログにも残す。
func WriteError(logger *zap.Logger, w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	body := ErrorResponse{Error: message}
	switch status {
	case http.StatusBadRequest, http.StatusConflict:
		body.Detail = err.Error()
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("リクエスト処理に失敗", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(logger, w, status, body)
}

// StatusFor returns the HTTP status and user-facing message for err.
func StatusFor(err error) (int, string) {
	switch apperror.Kind(err) {
	case apperror.ErrInvalidArgument:
		return http.StatusBadRequest, "リクエストの内容が不正です"
	case apperror.ErrPermissionDenied:
		return http.StatusForbidden, "この操作を行う権限がありません"
	case apperror.ErrNotFound:
		return http.StatusNotFound, "対象が見つかりません"
	case apperror.ErrConflict:
		return http.StatusConflict, "既に登録されています"
	case apperror.ErrUnavailable:
		return http.StatusServiceUnavailable, "データストアに接続できません。時間をおいて再試行してください"
	default:
		return http.StatusInternalServerError, "サーバー内部でエラーが発生しました"
	}
}

// DecodeJSON reads a JSON body into dst. Malformed or oversized bodies are InvalidArgument.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.InvalidArgument("request body is empty")
		}
		return apperror.InvalidArgument("malformed JSON: %v", err)
	}
	return nil
}
