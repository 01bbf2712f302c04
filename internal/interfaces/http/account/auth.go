package account

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
)

func (h *Handler) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		var req registerRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		reg, err := req.toRegistration()
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		user, err := h.service.Register(ctx, common.TokenFromContext(ctx), reg)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusCreated, user)
	}
}

func (h *Handler) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		var req loginRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		session, err := h.service.Login(ctx, req.Email, req.Password)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, session)
	}
}

func (h *Handler) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		principal, _ := common.PrincipalFromContext(ctx)
		if err := h.service.Logout(ctx, principal.Token); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		h.logger.Info("ログアウトしました", zap.Int("userId", principal.UserID))
		w.WriteHeader(http.StatusNoContent)
	}
}
