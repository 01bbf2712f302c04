package survey

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

func (h *Handler) surveyListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		page, err := pagingParam(r, "page", defaultPage)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		limit, err := pagingParam(r, "limit", defaultLimit)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		surveys, err := h.service.ListPublicSurveys(ctx, page, limit)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if surveys == nil {
			surveys = []domain.Survey{}
		}
		common.WriteJSON(h.logger, w, http.StatusOK, surveyListResponse{Items: surveys, Page: page, Limit: limit})
	}
}

func (h *Handler) surveyDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		survey, err := h.service.GetSurvey(ctx, surveyNumber)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, survey)
	}
}

func (h *Handler) surveyCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		var req surveyCreateRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		survey := domain.Survey{
			SurveyNumber: req.SurveyNumber,
			Title:        req.Title,
			AuthorID:     authorIDFor(r, req.AuthorID),
			AuthorName:   req.AuthorName,
			Published:    req.Published,
			Questions:    req.Questions,
		}
		created, err := h.service.CreateSurvey(ctx, common.TokenFromContext(ctx), survey)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		h.logger.Info("アンケートを作成しました", zap.Int("surveyNumber", created.SurveyNumber), zap.Int("authorId", created.AuthorID))
		common.WriteJSON(h.logger, w, http.StatusCreated, created)
	}
}

func (h *Handler) surveyUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		var req surveyUpdateRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		patch := domain.SurveyPatch{Title: req.Title, AuthorName: req.AuthorName, Published: req.Published}
		updated, err := h.service.UpdateSurvey(ctx, common.TokenFromContext(ctx), surveyNumber, authorIDFor(r, req.AuthorID), patch)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, updated)
	}
}

func (h *Handler) surveyDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if err := h.service.DeleteSurvey(ctx, common.TokenFromContext(ctx), surveyNumber, authorIDFor(r, nil)); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		h.logger.Info("アンケートを削除しました", zap.Int("surveyNumber", surveyNumber))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) surveyPublishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		published, err := h.service.PublishSurvey(ctx, common.TokenFromContext(ctx), surveyNumber, authorIDFor(r, nil))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, published)
	}
}
