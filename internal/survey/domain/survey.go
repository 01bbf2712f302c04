package domain

import (
	"strings"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
)

// Survey is a survey definition identified by its SurveyNumber.
type Survey struct {
	SurveyNumber int        `json:"surveyNumber"`
	Title        string     `json:"title"`
	AuthorID     int        `json:"authorId"`
	AuthorName   string     `json:"authorName"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Published    bool       `json:"published"`
	Questions    []Question `json:"questions"`
}

// Validate checks the fields required before a survey reaches the store.
func (s Survey) Validate() error {
	if s.SurveyNumber <= 0 {
		return apperror.InvalidArgument("surveyNumber must be positive")
	}
	if strings.TrimSpace(s.Title) == "" {
		return apperror.InvalidArgument("title is required")
	}
	if s.AuthorID <= 0 {
		return apperror.InvalidArgument("authorId must be positive")
	}
	if strings.TrimSpace(s.AuthorName) == "" {
		return apperror.InvalidArgument("authorName is required")
	}
	for i, q := range s.Questions {
		if err := q.validateContent(); err != nil {
			return apperror.InvalidArgument("question %d: %v", i+1, err)
		}
	}
	return nil
}

// SurveyPatch lists the mutable fields of a survey. Nil fields are left untouched.
type SurveyPatch struct {
	Title      *string `json:"title,omitempty"`
	AuthorName *string `json:"authorName,omitempty"`
	Published  *bool   `json:"published,omitempty"`
}

func (p SurveyPatch) IsEmpty() bool {
	return p.Title == nil && p.AuthorName == nil && p.Published == nil
}

func (p SurveyPatch) Validate() error {
	if p.IsEmpty() {
		return apperror.InvalidArgument("update has no fields")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperror.InvalidArgument("title must not be empty")
	}
	if p.AuthorName != nil && strings.TrimSpace(*p.AuthorName) == "" {
		return apperror.InvalidArgument("authorName must not be empty")
	}
	return nil
}

// NormalizeTime returns t in UTC at millisecond precision, the resolution the document store keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
