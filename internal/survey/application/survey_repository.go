package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// SurveyRepository はアンケートと設問をストアとキャッシュの組で扱う。
// 書き込みはアンケート番号ごとに直列化し、再キャッシュは必ず書き込み後の読み直しから作る。
type SurveyRepository struct {
	store  SurveyStore
	authz  Authorizer
	cache  *cache.ReadThrough
	locks  *keyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewSurveyRepository は store と authz を束ねた SurveyRepository を返す。
func NewSurveyRepository(store SurveyStore, authz Authorizer, rt *cache.ReadThrough, logger *zap.Logger) *SurveyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyRepository{
		store:  store,
		authz:  authz,
		cache:  rt,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

// Insert は作成権限を確認し、設問へ 1 から連番を振って保存する。
func (r *SurveyRepository) Insert(ctx context.Context, survey domain.Survey, token string) (domain.Survey, error) {
	allowed, err := r.authz.CanCreateSurveys(ctx, token)
	if err != nil {
		return domain.Survey{}, err
	}
	if !allowed {
		return domain.Survey{}, apperror.PermissionDenied("token may not create surveys")
	}

	now := domain.NormalizeTime(r.now())
	if survey.CreatedAt.IsZero() {
		survey.CreatedAt = now
	}
	if survey.UpdatedAt.IsZero() {
		survey.UpdatedAt = survey.CreatedAt
	}
	survey.CreatedAt = domain.NormalizeTime(survey.CreatedAt)
	survey.UpdatedAt = domain.NormalizeTime(survey.UpdatedAt)
	questions := make([]domain.Question, len(survey.Questions))
	for i, q := range survey.Questions {
		q.Number = i + 1
		questions[i] = q
	}
	survey.Questions = questions
	if err := survey.Validate(); err != nil {
		return domain.Survey{}, err
	}

	unlock := r.locks.Lock(survey.SurveyNumber)
	defer unlock()
	if err := r.store.Insert(ctx, survey); err != nil {
		return domain.Survey{}, err
	}
	// 作成前の参照で保存された「存在しない」マーカーを消す。
	r.cache.Invalidate(ctx, cache.SurveyKey(survey.SurveyNumber), cache.QuestionsKey(survey.SurveyNumber))
	return survey, nil
}

// GetPublic は公開済みアンケートを保存順にページングして返す。
func (r *SurveyRepository) GetPublic(ctx context.Context, page, limit int) ([]domain.Survey, error) {
	if page < 1 || limit < 1 {
		return nil, apperror.InvalidArgument("page and limit must be at least 1")
	}
	surveys, err := cache.Lookup(ctx, r.cache, cache.SurveyListKey(page, limit), cache.SurveyListPolicy, func(ctx context.Context) (*[]domain.Survey, error) {
		surveys, err := r.store.ListPublished(ctx, (page-1)*limit, limit)
		if err != nil {
			return nil, err
		}
		if surveys == nil {
			surveys = []domain.Survey{}
		}
		return &surveys, nil
	})
	if err != nil {
		return nil, err
	}
	if surveys == nil {
		return []domain.Survey{}, nil
	}
	return *surveys, nil
}

func (r *SurveyRepository) GetByNumber(ctx context.Context, surveyNumber int) (*domain.Survey, error) {
	survey, err := cache.Lookup(ctx, r.cache, cache.SurveyKey(surveyNumber), cache.SurveyPolicy, func(ctx context.Context) (*domain.Survey, error) {
		return r.store.FindByNumber(ctx, surveyNumber)
	})
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, apperror.NotFound("survey %d", surveyNumber)
	}
	return survey, nil
}

func (r *SurveyRepository) Update(ctx context.Context, surveyNumber int, patch domain.SurveyPatch, authorID int, token string) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	matched, err := r.store.Update(ctx, surveyNumber, patch, domain.NormalizeTime(r.now()))
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	r.refreshSurvey(ctx, surveyNumber)
	return nil
}

func (r *SurveyRepository) Delete(ctx context.Context, surveyNumber, authorID int, token string) error {
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	deleted, err := r.store.Delete(ctx, surveyNumber)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	r.cache.Invalidate(ctx, cache.SurveyKey(surveyNumber), cache.QuestionsKey(surveyNumber))
	return nil
}

func (r *SurveyRepository) Publish(ctx context.Context, surveyNumber, authorID int, token string) error {
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	matched, err := r.store.Publish(ctx, surveyNumber, domain.NormalizeTime(r.now()))
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	r.refreshSurvey(ctx, surveyNumber)
	return nil
}

// InsertQuestions は既存番号と最高到達番号の大きい方の次から連番を振り、設問を追加する。
func (r *SurveyRepository) InsertQuestions(ctx context.Context, surveyNumber int, questions []domain.Question, authorID int, token string) ([]domain.Question, error) {
	if len(questions) == 0 {
		return nil, apperror.InvalidArgument("at least one question is required")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, apperror.InvalidArgument("question %d: %v", i+1, err)
		}
	}
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	set, err := r.store.Questions(ctx, surveyNumber)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, apperror.NotFound("survey %d", surveyNumber)
	}

	next := set.NextNumber()
	inserted := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.Number = next + i
		inserted[i] = q
	}
	all := append(append([]domain.Question{}, set.Questions...), inserted...)
	highWater := inserted[len(inserted)-1].Number

	matched, err := r.store.ReplaceQuestions(ctx, surveyNumber, all, highWater, domain.NormalizeTime(r.now()))
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, apperror.NotFound("survey %d", surveyNumber)
	}
	r.refreshQuestions(ctx, surveyNumber)
	return inserted, nil
}

func (r *SurveyRepository) GetQuestions(ctx context.Context, surveyNumber int) ([]domain.Question, error) {
	questions, err := cache.Lookup(ctx, r.cache, cache.QuestionsKey(surveyNumber), cache.QuestionsPolicy, func(ctx context.Context) (*[]domain.Question, error) {
		set, err := r.store.Questions(ctx, surveyNumber)
		if err != nil || set == nil {
			return nil, err
		}
		questions := set.Questions
		if questions == nil {
			questions = []domain.Question{}
		}
		return &questions, nil
	})
	if err != nil {
		return nil, err
	}
	if questions == nil {
		return nil, apperror.NotFound("survey %d", surveyNumber)
	}
	return *questions, nil
}

// UpdateQuestion は questionNumber の設問を replacement の唯一の要素で置き換える。番号は維持する。
func (r *SurveyRepository) UpdateQuestion(ctx context.Context, surveyNumber, questionNumber int, replacement []domain.Question, authorID int, token string) error {
	if len(replacement) != 1 {
		return apperror.InvalidArgument("exactly one replacement question is required, got %d", len(replacement))
	}
	question := replacement[0]
	if err := question.Validate(); err != nil {
		return apperror.InvalidArgument("question: %v", err)
	}
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	question.Number = questionNumber
	matched, err := r.store.ReplaceQuestion(ctx, surveyNumber, question, domain.NormalizeTime(r.now()))
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NotFound("question %d of survey %d", questionNumber, surveyNumber)
	}
	r.refreshQuestions(ctx, surveyNumber)
	return nil
}

func (r *SurveyRepository) DeleteQuestion(ctx context.Context, surveyNumber, questionNumber, authorID int, token string) error {
	if err := r.authorize(ctx, authorID, surveyNumber, token); err != nil {
		return err
	}

	unlock := r.locks.Lock(surveyNumber)
	defer unlock()
	set, err := r.store.Questions(ctx, surveyNumber)
	if err != nil {
		return err
	}
	if set == nil {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	remaining := make([]domain.Question, 0, len(set.Questions))
	for _, q := range set.Questions {
		if q.Number != questionNumber {
			remaining = append(remaining, q)
		}
	}
	if len(remaining) == len(set.Questions) {
		return apperror.NotFound("question %d of survey %d", questionNumber, surveyNumber)
	}

	highWater := set.NextNumber() - 1
	matched, err := r.store.ReplaceQuestions(ctx, surveyNumber, remaining, highWater, domain.NormalizeTime(r.now()))
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	r.refreshQuestions(ctx, surveyNumber)
	return nil
}

// authorize は権限がない場合も存在しない場合と同じ NotFound を返す。
func (r *SurveyRepository) authorize(ctx context.Context, authorID, surveyNumber int, token string) error {
	allowed, err := r.authz.CanModifySurvey(ctx, authorID, surveyNumber, token)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NotFound("survey %d", surveyNumber)
	}
	return nil
}

func (r *SurveyRepository) refreshSurvey(ctx context.Context, surveyNumber int) {
	key := cache.SurveyKey(surveyNumber)
	survey, err := r.store.FindByNumber(ctx, surveyNumber)
	if err != nil || survey == nil {
		if err != nil {
			r.logger.Warn("書き込み後のアンケート再取得に失敗しました", zap.Int("surveyNumber", surveyNumber), zap.Error(err))
		}
		r.cache.Invalidate(ctx, key)
		return
	}
	r.cache.Store(ctx, key, survey, cache.SurveyPolicy.TTL)
}

// refreshQuestions は設問変更後に survey:{id} を削除し、設問一覧をストアから読み直して再キャッシュする。
// アンケート本体に設問が埋め込まれているため、必ず本体の削除を先に行う。
func (r *SurveyRepository) refreshQuestions(ctx context.Context, surveyNumber int) {
	r.cache.Invalidate(ctx, cache.SurveyKey(surveyNumber))
	key := cache.QuestionsKey(surveyNumber)
	set, err := r.store.Questions(ctx, surveyNumber)
	if err != nil || set == nil {
		if err != nil {
			r.logger.Warn("書き込み後の設問再取得に失敗しました", zap.Int("surveyNumber", surveyNumber), zap.Error(err))
		}
		r.cache.Invalidate(ctx, key)
		return
	}
	questions := set.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	r.cache.Store(ctx, key, questions, cache.QuestionsPolicy.TTL)
}
