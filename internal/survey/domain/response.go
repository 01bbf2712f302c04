package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
)

// Response is one respondent's submission for a survey. Responses are append-only.
type Response struct {
	ID              string    `json:"id,omitempty"`
	SurveyNumber    int       `json:"surveyNumber"`
	RespondentID    int       `json:"respondentId"`
	RespondentName  string    `json:"respondentName"`
	RespondentEmail string    `json:"respondentEmail"`
	SubmittedAt     time.Time `json:"submittedAt"`
	Answers         []Answer  `json:"answers"`
}

// Answer is the value given for one question.
type Answer struct {
	QuestionNumber int         `json:"questionNumber"`
	Category       Category    `json:"category"`
	Text           string      `json:"text"`
	Value          AnswerValue `json:"answer"`
}

// ResponseSummary aggregates the responses of one survey.
type ResponseSummary struct {
	ResponseCount  int       `json:"response_count"`
	LatestResponse *Response `json:"latest_response"`
}

func (r Response) Validate() error {
	if r.SurveyNumber <= 0 {
		return apperror.InvalidArgument("surveyNumber must be positive")
	}
	if r.RespondentID <= 0 {
		return apperror.InvalidArgument("respondentId must be positive")
	}
	if strings.TrimSpace(r.RespondentName) == "" {
		return apperror.InvalidArgument("respondentName is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(r.RespondentEmail)); err != nil {
		return apperror.InvalidArgument("respondentEmail is invalid")
	}
	if len(r.Answers) == 0 {
		return apperror.InvalidArgument("answers are required")
	}
	for i, a := range r.Answers {
		if err := a.validate(); err != nil {
			return apperror.InvalidArgument("answer %d: %v", i+1, err)
		}
	}
	return nil
}

func (a Answer) validate() error {
	if a.QuestionNumber <= 0 {
		return errors.New("questionNumber must be positive")
	}
	if !a.Category.Valid() {
		return fmt.Errorf("unknown category %q", a.Category)
	}
	if a.Value.IsZero() {
		return errors.New("answer is required")
	}
	if want := a.Category.AnswerKind(); a.Value.Kind() != want {
		return fmt.Errorf("category %s expects a %s answer, got %s", a.Category, want, a.Value.Kind())
	}
	return nil
}
