package survey

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/interfaces/http/common"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type surveyCreateRequest struct {
	SurveyNumber int               `json:"surveyNumber"`
	Title        string            `json:"title"`
	AuthorID     *int              `json:"authorId"`
	AuthorName   string            `json:"authorName"`
	Published    bool              `json:"published"`
	Questions    []domain.Question `json:"questions"`
}

type surveyUpdateRequest struct {
	AuthorID   *int    `json:"authorId"`
	Title      *string `json:"title"`
	AuthorName *string `json:"authorName"`
	Published  *bool   `json:"published"`
}

type questionsRequest struct {
	AuthorID  *int              `json:"authorId"`
	Questions []domain.Question `json:"questions"`
}

type surveyListResponse struct {
	Items []domain.Survey `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// authorIDFor は明示された authorId を優先し、無ければトークンの利用者 ID を使う。
func authorIDFor(r *http.Request, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("authorId")); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			return id
		}
	}
	principal, _ := common.PrincipalFromContext(r.Context())
	return principal.UserID
}

// pagingParam parses page/limit. Missing values fall back; malformed ones are rejected.
func pagingParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidArgument("%s must be an integer", name)
	}
	return value, nil
}

func surveyNumberParam(r *http.Request) (int, error) {
	n, ok := common.PathInt(r, "id")
	if !ok {
		return 0, apperror.InvalidArgument("survey id must be a positive integer")
	}
	return n, nil
}

func questionNumberParam(r *http.Request) (int, error) {
	n, ok := common.PathInt(r, "q")
	if !ok {
		return 0, apperror.InvalidArgument("question number must be a positive integer")
	}
	return n, nil
}
