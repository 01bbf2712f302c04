package application

import (
	"context"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// surveyService implements SurveyService.
type surveyService struct {
	surveys   *SurveyRepository
	responses *ResponseRepository
	authz     Authorizer
	cache     *cache.ReadThrough
}

// NewSurveyService creates a new SurveyService.
func NewSurveyService(surveys *SurveyRepository, responses *ResponseRepository, authz Authorizer, rt *cache.ReadThrough) SurveyService {
	return &surveyService{surveys: surveys, responses: responses, authz: authz, cache: rt}
}

func (s *surveyService) CreateSurvey(ctx context.Context, token string, survey domain.Survey) (domain.Survey, error) {
	created, err := s.surveys.Insert(ctx, survey, token)
	if err != nil {
		return domain.Survey{}, err
	}
	s.invalidateListings(ctx)
	return created, nil
}

func (s *surveyService) ListPublicSurveys(ctx context.Context, page, limit int) ([]domain.Survey, error) {
	return s.surveys.GetPublic(ctx, page, limit)
}

func (s *surveyService) GetSurvey(ctx context.Context, surveyNumber int) (*domain.Survey, error) {
	return s.surveys.GetByNumber(ctx, surveyNumber)
}

func (s *surveyService) UpdateSurvey(ctx context.Context, token string, surveyNumber, authorID int, patch domain.SurveyPatch) (*domain.Survey, error) {
	if err := s.surveys.Update(ctx, surveyNumber, patch, authorID, token); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return s.surveys.GetByNumber(ctx, surveyNumber)
}

func (s *surveyService) DeleteSurvey(ctx context.Context, token string, surveyNumber, authorID int) error {
	if err := s.surveys.Delete(ctx, surveyNumber, authorID, token); err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

func (s *surveyService) PublishSurvey(ctx context.Context, token string, surveyNumber, authorID int) (*domain.Survey, error) {
	if err := s.surveys.Publish(ctx, surveyNumber, authorID, token); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return s.surveys.GetByNumber(ctx, surveyNumber)
}

func (s *surveyService) AddQuestions(ctx context.Context, token string, surveyNumber, authorID int, questions []domain.Question) ([]domain.Question, error) {
	inserted, err := s.surveys.InsertQuestions(ctx, surveyNumber, questions, authorID, token)
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return inserted, nil
}

func (s *surveyService) ListQuestions(ctx context.Context, surveyNumber int) ([]domain.Question, error) {
	return s.surveys.GetQuestions(ctx, surveyNumber)
}

func (s *surveyService) UpdateQuestion(ctx context.Context, token string, surveyNumber, questionNumber, authorID int, replacement []domain.Question) ([]domain.Question, error) {
	if err := s.surveys.UpdateQuestion(ctx, surveyNumber, questionNumber, replacement, authorID, token); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return s.surveys.GetQuestions(ctx, surveyNumber)
}

func (s *surveyService) DeleteQuestion(ctx context.Context, token string, surveyNumber, questionNumber, authorID int) error {
	if err := s.surveys.DeleteQuestion(ctx, surveyNumber, questionNumber, authorID, token); err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

// SubmitResponse checks the session first, then that the survey exists.
func (s *surveyService) SubmitResponse(ctx context.Context, token string, surveyNumber int, response domain.Response) (domain.Response, error) {
	if err := s.requireActive(ctx, token); err != nil {
		return domain.Response{}, err
	}
	if _, err := s.surveys.GetByNumber(ctx, surveyNumber); err != nil {
		return domain.Response{}, err
	}
	return s.responses.Post(ctx, surveyNumber, response, token)
}

func (s *surveyService) ListResponses(ctx context.Context, token string, surveyNumber int) ([]domain.Response, error) {
	if err := s.requireActive(ctx, token); err != nil {
		return nil, err
	}
	return s.responses.GetResponses(ctx, surveyNumber)
}

func (s *surveyService) ResponseSummary(ctx context.Context, token string, surveyNumber int) (domain.ResponseSummary, error) {
	if err := s.requireActive(ctx, token); err != nil {
		return domain.ResponseSummary{}, err
	}
	return s.responses.GetSummary(ctx, surveyNumber)
}

func (s *surveyService) requireActive(ctx context.Context, token string) error {
	active, err := s.authz.IsActive(ctx, token)
	if err != nil {
		return err
	}
	if !active {
		return apperror.PermissionDenied("session is not active")
	}
	return nil
}


func (s *surveyService) invalidateListings(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, cache.SurveyListPrefix)
}
