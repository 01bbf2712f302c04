package survey

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	authdomain "github.com/sngm3741/survey-platform/api/internal/auth/domain"
	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

func (h *Handler) responseCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		var response domain.Response
		if err := common.DecodeJSON(w, r, &response); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		response.SurveyNumber = surveyNumber
		// 回答者はトークンの利用者に固定する。管理者のみ代理入力として respondentId を指定できる。
		principal, _ := common.PrincipalFromContext(ctx)
		if authdomain.Role(principal.Role) != authdomain.RoleAdmin || response.RespondentID == 0 {
			response.RespondentID = principal.UserID
		}

		saved, err := h.service.SubmitResponse(ctx, common.TokenFromContext(ctx), surveyNumber, response)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		h.logger.Info("回答を受け付けました", zap.Int("surveyNumber", surveyNumber), zap.String("responseId", saved.ID))
		common.WriteJSON(h.logger, w, http.StatusCreated, saved)
	}
}

func (h *Handler) responseListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		responses, err := h.service.ListResponses(ctx, common.TokenFromContext(ctx), surveyNumber)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		if responses == nil {
			responses = []domain.Response{}
		}
		common.WriteJSON(h.logger, w, http.StatusOK, common.ItemsResponse[domain.Response]{Items: responses})
	}
}

func (h *Handler) responseSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		surveyNumber, err := surveyNumberParam(r)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		summary, err := h.service.ResponseSummary(ctx, common.TokenFromContext(ctx), surveyNumber)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, summary)
	}
}
