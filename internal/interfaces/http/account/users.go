package account

import (
	"context"
	"net/http"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
)

func userIDParam(r *http.Request) (int, error) {
	id, ok := common.PathInt(r, "id")
	if !ok {
		return 0, apperror.InvalidArgument("user id must be a positive integer")
	}
	return id, nil
}

func decodeUserUpdate(w http.ResponseWriter, r *http.Request) (domain.UserUpdate, error) {
	var req userUpdateRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		return domain.UserUpdate{}, err
	}
	return req.toUpdate()
}

func writeUsers(h *Handler, w http.ResponseWriter, users []domain.User) {
	if users == nil {
		users = []domain.User{}
	}
	common.WriteJSON(h.logger, w, http.StatusOK, common.ItemsResponse[domain.User]{Items: users})
}

func (h *Handler) userListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		users, err := h.service.ListUsers(ctx, common.TokenFromContext(ctx))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		writeUsers(h, w, users)
	}
}

func (h *Handler) userDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		user, err := h.service.GetUser(ctx, common.TokenFromContext(ctx), userID)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, user)
	}
}

func (h *Handler) userUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		update, err := decodeUserUpdate(w, r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		user, err := h.service.UpdateUser(ctx, common.TokenFromContext(ctx), userID, update)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, user)
	}
}

func (h *Handler) userDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if err := h.service.DeleteUser(ctx, common.TokenFromContext(ctx), userID); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) respondentListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		users, err := h.service.ListRespondents(ctx, common.TokenFromContext(ctx))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		writeUsers(h, w, users)
	}
}

func (h *Handler) respondentDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		user, err := h.service.GetRespondent(ctx, common.TokenFromContext(ctx), userID)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, user)
	}
}

// respondentCreateHandler は調査作成者による回答者登録を受け付ける。roleId は無視され常に回答者になる。
func (h *Handler) respondentCreateHandler() http.HandlerFunc {
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

		user, err := h.service.CreateRespondent(ctx, common.TokenFromContext(ctx), reg)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusCreated, user)
	}
}

func (h *Handler) respondentUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		update, err := decodeUserUpdate(w, r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		user, err := h.service.UpdateRespondent(ctx, common.TokenFromContext(ctx), userID, update)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, user)
	}
}

func (h *Handler) respondentDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		userID, err := userIDParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if err := h.service.DeleteRespondent(ctx, common.TokenFromContext(ctx), userID); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
