package survey

import (
	"context"
	"net/http"

	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

func (h *Handler) questionListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		questions, err := h.service.ListQuestions(ctx, surveyNumber)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		writeQuestions(h, w, http.StatusOK, questions)
	}
}

func (h *Handler) questionCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		var req questionsRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		inserted, err := h.service.AddQuestions(ctx, common.TokenFromContext(ctx), surveyNumber, authorIDFor(r, req.AuthorID), req.Questions)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		writeQuestions(h, w, http.StatusCreated, inserted)
	}
}

func (h *Handler) questionUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		questionNumber, err := questionNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		var req questionsRequest
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		questions, err := h.service.UpdateQuestion(ctx, common.TokenFromContext(ctx), surveyNumber, questionNumber, authorIDFor(r, req.AuthorID), req.Questions)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		writeQuestions(h, w, http.StatusOK, questions)
	}
}

func (h *Handler) questionDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		questionNumber, err := questionNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if err := h.service.DeleteQuestion(ctx, common.TokenFromContext(ctx), surveyNumber, questionNumber, authorIDFor(r, nil)); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeQuestions(h *Handler, w http.ResponseWriter, status int, questions []domain.Question) {
	if questions == nil {
		questions = []domain.Question{}
	}
	common.WriteJSON(h.logger, w, status, common.ItemsResponse[domain.Question]{Items: questions})
}
