package survey

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	surveyapp "github.com/sngm3741/survey-platform/api/internal/survey/application"
)

const defaultRequestTimeout = 5 * time.Second

// Handler wires survey HTTP endpoints to the survey service.
type Handler struct {
	logger  *zap.Logger
	service surveyapp.SurveyService
	timeout time.Duration
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger         *zap.Logger
	Service        surveyapp.SurveyService
	RequestTimeout time.Duration
}

// NewHandler constructs a survey HTTP handler set.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{logger: logger, service: cfg.Service, timeout: timeout}
}

// Register mounts the survey routes. Reads of published content are anonymous.
func (h *Handler) Register(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/surveys", h.surveyListHandler())
	r.Get("/surveys/{id}", h.surveyDetailHandler())
	r.Get("/surveys/{id}/questions", h.questionListHandler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/surveys", h.surveyCreateHandler())
		r.Put("/surveys/{id}", h.surveyUpdateHandler())
		r.Delete("/surveys/{id}", h.surveyDeleteHandler())
		r.Post("/surveys/{id}/publish", h.surveyPublishHandler())

		r.Post("/surveys/{id}/questions", h.questionCreateHandler())
		r.Put("/surveys/{id}/questions/{q}", h.questionUpdateHandler())
		r.Delete("/surveys/{id}/questions/{q}", h.questionDeleteHandler())

		r.Post("/surveys/{id}/responses", h.responseCreateHandler())
		r.Get("/surveys/{id}/responses", h.responseListHandler())
		r.Get("/surveys/{id}/analysis", h.responseSummaryHandler())
	})
}
