package application

import (
	"context"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// SurveyStore はアンケート定義を保持するドキュメントストアへのポート。
// 「存在しない」は nil / false で返し、エラーはストア障害(または一意制約違反)に限る。
type SurveyStore interface {
	Insert(ctx context.Context, survey domain.Survey) error
	ListPublished(ctx context.Context, offset, limit int) ([]domain.Survey, error)
	FindByNumber(ctx context.Context, surveyNumber int) (*domain.Survey, error)
	Update(ctx context.Context, surveyNumber int, patch domain.SurveyPatch, updatedAt time.Time) (bool, error)
	Delete(ctx context.Context, surveyNumber int) (bool, error)
	Publish(ctx context.Context, surveyNumber int, updatedAt time.Time) (bool, error)
	Questions(ctx context.Context, surveyNumber int) (*QuestionSet, error)
	// ReplaceQuestions overwrites the question list and raises the stored high-water mark to at least highWater.
	ReplaceQuestions(ctx context.Context, surveyNumber int, questions []domain.Question, highWater int, updatedAt time.Time) (bool, error)
	// ReplaceQuestion updates the question with question.Number in place. False when the survey or the question is missing.
	ReplaceQuestion(ctx context.Context, surveyNumber int, question domain.Question, updatedAt time.Time) (bool, error)
}

// QuestionSet is a survey's question list plus the highest number ever assigned in it.
type QuestionSet struct {
	Questions []domain.Question
	HighWater int
}

// NextNumber returns the number the next inserted question receives.
func (s QuestionSet) NextNumber() int {
	highest := domain.MaxQuestionNumber(s.Questions)
	if s.HighWater > highest {
		highest = s.HighWater
	}
	return highest + 1
}

// ResponseStore は回答ドキュメントを保持するストアへのポート。
type ResponseStore interface {
	Insert(ctx context.Context, response domain.Response) (string, error)
	CountBySurvey(ctx context.Context, surveyNumber int) (int, error)
	LatestBySurvey(ctx context.Context, surveyNumber int) (*domain.Response, error)
	FindBySurvey(ctx context.Context, surveyNumber int) ([]domain.Response, error)
}

// Authorizer is the subset of the authorization service the survey context depends on.
type Authorizer interface {
	IsActive(ctx context.Context, token string) (bool, error)
	CanCreateSurveys(ctx context.Context, token string) (bool, error)
	CanModifySurvey(ctx context.Context, authorID, surveyNumber int, token string) (bool, error)
}

// SurveyService はアンケートのユースケースを束ね、キャッシュ無効化の順序を管理する。
type SurveyService interface {
	CreateSurvey(ctx context.Context, token string, survey domain.Survey) (domain.Survey, error)
	ListPublicSurveys(ctx context.Context, page, limit int) ([]domain.Survey, error)
	GetSurvey(ctx context.Context, surveyNumber int) (*domain.Survey, error)
	UpdateSurvey(ctx context.Context, token string, surveyNumber, authorID int, patch domain.SurveyPatch) (*domain.Survey, error)
	DeleteSurvey(ctx context.Context, token string, surveyNumber, authorID int) error
	PublishSurvey(ctx context.Context, token string, surveyNumber, authorID int) (*domain.Survey, error)

	AddQuestions(ctx context.Context, token string, surveyNumber, authorID int, questions []domain.Question) ([]domain.Question, error)
	ListQuestions(ctx context.Context, surveyNumber int) ([]domain.Question, error)
	UpdateQuestion(ctx context.Context, token string, surveyNumber, questionNumber, authorID int, replacement []domain.Question) ([]domain.Question, error)
	DeleteQuestion(ctx context.Context, token string, surveyNumber, questionNumber, authorID int) error

	SubmitResponse(ctx context.Context, token string, surveyNumber int, response domain.Response) (domain.Response, error)
	ListResponses(ctx context.Context, token string, surveyNumber int) ([]domain.Response, error)
	ResponseSummary(ctx context.Context, token string, surveyNumber int) (domain.ResponseSummary, error)
}
