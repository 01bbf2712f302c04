package account

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authapp "github.com/sngm3741/survey-platform/api/internal/auth/application"
)

const defaultRequestTimeout = 5 * time.Second

// Handler wires login, registration and user administration endpoints.
type Handler struct {
	logger  *zap.Logger
	service authapp.AccountService
	timeout time.Duration
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger         *zap.Logger
	Service        authapp.AccountService
	RequestTimeout time.Duration
}

// NewHandler constructs an account HTTP handler set.
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

// Register mounts the account routes. Registration accepts an optional token,
// which is required only when creating an administrator.
func (h *Handler) Register(r chi.Router, authMiddleware, optionalAuth func(http.Handler) http.Handler) {
	r.With(optionalAuth).Post("/auth/register", h.registerHandler())
	r.Post("/auth/login", h.loginHandler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/auth/logout", h.logoutHandler())

		r.Get("/users", h.userListHandler())
		r.Get("/users/{id}", h.userDetailHandler())
		r.Put("/users/{id}", h.userUpdateHandler())
		r.Delete("/users/{id}", h.userDeleteHandler())

		r.Get("/respondents", h.respondentListHandler())
		r.Post("/respondents", h.respondentCreateHandler())
		r.Get("/respondents/{id}", h.respondentDetailHandler())
		r.Put("/respondents/{id}", h.respondentUpdateHandler())
		r.Delete("/respondents/{id}", h.respondentDeleteHandler())
	})
}
