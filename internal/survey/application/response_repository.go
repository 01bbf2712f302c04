package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// ResponseRepository は回答の追記と、回答一覧・集計のキャッシュを扱う。
type ResponseRepository struct {
	store  ResponseStore
	authz  Authorizer
	cache  *cache.ReadThrough
	locks  *keyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewResponseRepository は store と authz を束ねた ResponseRepository を返す。
func NewResponseRepository(store ResponseStore, authz Authorizer, rt *cache.ReadThrough, logger *zap.Logger) *ResponseRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseRepository{
		store:  store,
		authz:  authz,
		cache:  rt,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

// Post は有効なセッションからの回答を追記し、集計を再計算してキャッシュする。
func (r *ResponseRepository) Post(ctx context.Context, surveyNumber int, response domain.Response, token string) (domain.Response, error) {
	active, err := r.authz.IsActive(ctx, token)
	if err != nil {
		return domain.Response{}, err
	}
	if !active {
		return domain.Response{}, apperror.PermissionDenied("session is not active")
	}

	response.SurveyNumber = surveyNumber
	response.ID = ""
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = r.now()
	}
	response.SubmittedAt = domain.NormalizeTime(response.SubmittedAt)
	if err := response.Validate(); err != nil {
		return domain.Response{}, err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	id, err := r.store.Insert(ctx, response)
	if err != nil {
		return domain.Response{}, err
	}
	response.ID = id

	summary, err := r.computeSummary(ctx, surveyNumber)
	if err != nil {
		r.logger.Warn("回答集計の再計算に失敗しました", zap.Int("surveyNumber", surveyNumber), zap.Error(err))
		r.cache.Invalidate(ctx, cache.ResponseSummaryKey(surveyNumber))
	} else {
		r.cache.Store(ctx, cache.ResponseSummaryKey(surveyNumber), summary, cache.ResponseSummaryPolicy.TTL)
	}
	r.cache.Invalidate(ctx, cache.ResponsesKey(surveyNumber))
	return response, nil
}

func (r *ResponseRepository) GetResponses(ctx context.Context, surveyNumber int) ([]domain.Response, error) {
	responses, err := cache.Lookup(ctx, r.cache, cache.ResponsesKey(surveyNumber), cache.ResponsesPolicy, func(ctx context.Context) (*[]domain.Response, error) {
		responses, err := r.store.FindBySurvey(ctx, surveyNumber)
		if err != nil {
			return nil, err
		}
		if responses == nil {
			responses = []domain.Response{}
		}
		return &responses, nil
	})
	if err != nil {
		return nil, err
	}
	if responses == nil {
		return []domain.Response{}, nil
	}
	return *responses, nil
}

// GetSummary は回答件数と最新回答をキャッシュ優先で返す。
func (r *ResponseRepository) GetSummary(ctx context.Context, surveyNumber int) (domain.ResponseSummary, error) {
	summary, err := cache.Lookup(ctx, r.cache, cache.ResponseSummaryKey(surveyNumber), cache.ResponseSummaryPolicy, func(ctx context.Context) (*domain.ResponseSummary, error) {
		summary, err := r.computeSummary(ctx, surveyNumber)
		if err != nil {
			return nil, err
		}
		return &summary, nil
	})
	if err != nil {
		return domain.ResponseSummary{}, err
	}
	if summary == nil {
		return domain.ResponseSummary{}, nil
	}
	return *summary, nil
}

func (r *ResponseRepository) computeSummary(ctx context.Context, surveyNumber int) (domain.ResponseSummary, error) {
	count, err := r.store.CountBySurvey(ctx, surveyNumber)
	if err != nil {
		return domain.ResponseSummary{}, err
	}
	latest, err := r.store.LatestBySurvey(ctx, surveyNumber)
	if err != nil {
		return domain.ResponseSummary{}, err
	}
	return domain.ResponseSummary{ResponseCount: count, LatestResponse: latest}, nil
}
