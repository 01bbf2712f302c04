package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

var errStoreDown = errors.New("mongo: server selection timeout")

type storedSurvey struct {
	survey    domain.Survey
	highWater int
}

// fakeSurveyStore keeps surveys in insertion order and counts calls per method.
type fakeSurveyStore struct {
	mu      sync.Mutex
	order   []int
	surveys map[int]*storedSurvey
	calls   map[string]int
	down    bool
}

func newFakeSurveyStore() *fakeSurveyStore {
	return &fakeSurveyStore{surveys: make(map[int]*storedSurvey), calls: make(map[string]int)}
}

func (s *fakeSurveyStore) enter(name string) error {
	s.calls[name]++
	if s.down {
		return apperror.Unavailable(name, errStoreDown)
	}
	return nil
}

func (s *fakeSurveyStore) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// clone deep-copies through JSON so callers never share slices with the store.
func clone[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func (s *fakeSurveyStore) Insert(_ context.Context, survey domain.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Insert"); err != nil {
		return err
	}
	if _, ok := s.surveys[survey.SurveyNumber]; ok {
		return apperror.Conflict("survey %d already exists", survey.SurveyNumber)
	}
	s.surveys[survey.SurveyNumber] = &storedSurvey{survey: clone(survey), highWater: domain.MaxQuestionNumber(survey.Questions)}
	s.order = append(s.order, survey.SurveyNumber)
	return nil
}

func (s *fakeSurveyStore) ListPublished(_ context.Context, offset, limit int) ([]domain.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPublished"); err != nil {
		return nil, err
	}
	var published []domain.Survey
	for _, n := range s.order {
		if st, ok := s.surveys[n]; ok && st.survey.Published {
			published = append(published, clone(st.survey))
		}
	}
	if offset >= len(published) {
		return nil, nil
	}
	end := offset + limit
	if end > len(published) {
		end = len(published)
	}
	return published[offset:end], nil
}

func (s *fakeSurveyStore) FindByNumber(_ context.Context, n int) (*domain.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindByNumber"); err != nil {
		return nil, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return nil, nil
	}
	survey := clone(st.survey)
	return &survey, nil
}

func (s *fakeSurveyStore) Update(_ context.Context, n int, patch domain.SurveyPatch, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Update"); err != nil {
		return false, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return false, nil
	}
	if patch.Title != nil {
		st.survey.Title = *patch.Title
	}
	if patch.AuthorName != nil {
		st.survey.AuthorName = *patch.AuthorName
	}
	if patch.Published != nil {
		st.survey.Published = *patch.Published
	}
	st.survey.UpdatedAt = updatedAt
	return true, nil
}

func (s *fakeSurveyStore) Delete(_ context.Context, n int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Delete"); err != nil {
		return false, err
	}
	if _, ok := s.surveys[n]; !ok {
		return false, nil
	}
	delete(s.surveys, n)
	return true, nil
}

func (s *fakeSurveyStore) Publish(_ context.Context, n int, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Publish"); err != nil {
		return false, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return false, nil
	}
	st.survey.Published = true
	st.survey.UpdatedAt = updatedAt
	return true, nil
}

func (s *fakeSurveyStore) Questions(_ context.Context, n int) (*QuestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Questions"); err != nil {
		return nil, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return nil, nil
	}
	return &QuestionSet{Questions: clone(st.survey.Questions), HighWater: st.highWater}, nil
}

func (s *fakeSurveyStore) ReplaceQuestions(_ context.Context, n int, questions []domain.Question, highWater int, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ReplaceQuestions"); err != nil {
		return false, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return false, nil
	}
	st.survey.Questions = clone(questions)
	if highWater > st.highWater {
		st.highWater = highWater
	}
	st.survey.UpdatedAt = updatedAt
	return true, nil
}

func (s *fakeSurveyStore) ReplaceQuestion(_ context.Context, n int, question domain.Question, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ReplaceQuestion"); err != nil {
		return false, err
	}
	st, ok := s.surveys[n]
	if !ok {
		return false, nil
	}
	for i, q := range st.survey.Questions {
		if q.Number == question.Number {
			st.survey.Questions[i] = clone(question)
			st.survey.UpdatedAt = updatedAt
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSurveyStore) SurveyAuthor(_ context.Context, n int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.surveys[n]
	if !ok {
		return 0, false, nil
	}
	return st.survey.AuthorID, true, nil
}

type fakeResponseStore struct {
	mu        sync.Mutex
	responses []domain.Response
	calls     map[string]int
	nextID    int
}

func newFakeResponseStore() *fakeResponseStore {
	return &fakeResponseStore{calls: make(map[string]int)}
}

func (s *fakeResponseStore) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *fakeResponseStore) Insert(_ context.Context, response domain.Response) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Insert"]++
	s.nextID++
	response.ID = fmt.Sprintf("resp-%d", s.nextID)
	s.responses = append(s.responses, clone(response))
	return response.ID, nil
}

func (s *fakeResponseStore) bySurvey(n int) []domain.Response {
	var out []domain.Response
	for _, r := range s.responses {
		if r.SurveyNumber == n {
			out = append(out, clone(r))
		}
	}
	return out
}

func (s *fakeResponseStore) CountBySurvey(_ context.Context, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CountBySurvey"]++
	return len(s.bySurvey(n)), nil
}

func (s *fakeResponseStore) LatestBySurvey(_ context.Context, n int) (*domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["LatestBySurvey"]++
	rs := s.bySurvey(n)
	if len(rs) == 0 {
		return nil, nil
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].SubmittedAt.After(rs[j].SubmittedAt) })
	return &rs[0], nil
}

func (s *fakeResponseStore) FindBySurvey(_ context.Context, n int) ([]domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindBySurvey"]++
	return s.bySurvey(n), nil
}

type principal struct {
	userID int
	admin  bool
	author bool
	active bool
}

// fakeAuthorizer mirrors the capability rules against the fake survey store.
type fakeAuthorizer struct {
	tokens  map[string]principal
	surveys *fakeSurveyStore
}

func (a *fakeAuthorizer) IsActive(_ context.Context, token string) (bool, error) {
	return a.tokens[token].active, nil
}

func (a *fakeAuthorizer) CanCreateSurveys(_ context.Context, token string) (bool, error) {
	p := a.tokens[token]
	return p.active && (p.admin || p.author), nil
}

func (a *fakeAuthorizer) CanModifySurvey(ctx context.Context, authorID, n int, token string) (bool, error) {
	p, ok := a.tokens[token]
	if !ok || !p.active || p.userID != authorID {
		return false, nil
	}
	if p.admin {
		return true, nil
	}
	if !p.author {
		return false, nil
	}
	owner, found, err := a.surveys.SurveyAuthor(ctx, n)
	return found && owner == authorID, err
}

// recordingCache logs every write and invalidation so tests can assert ordering.
type recordingCache struct {
	cache.Cache
	mu  sync.Mutex
	ops []string
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.ops = append(c.ops, "set "+key)
	c.mu.Unlock()
	return c.Cache.Set(ctx, key, value, ttl)
}

func (c *recordingCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		c.ops = append(c.ops, "del "+k)
	}
	c.mu.Unlock()
	return c.Cache.Delete(ctx, keys...)
}

func (c *recordingCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	c.ops = append(c.ops, "prefix "+prefix)
	c.mu.Unlock()
	return c.Cache.DeleteByPrefix(ctx, prefix)
}

func (c *recordingCache) reset() {
	c.mu.Lock()
	c.ops = nil
	c.mu.Unlock()
}

const (
	adminToken      = "admin-token"
	ownerToken      = "owner-token"
	otherToken      = "other-token"
	respondentToken = "respondent-token"
	expiredToken    = "expired-token"

	adminID      = 1
	ownerID      = 2
	otherID      = 3
	respondentID = 4
)

type fixture struct {
	svc       SurveyService
	surveys   *SurveyRepository
	responses *ResponseRepository
	store     *fakeSurveyStore
	answers   *fakeResponseStore
	cache     *recordingCache
	clock     time.Time
}

func newFixture() *fixture {
	store := newFakeSurveyStore()
	answers := newFakeResponseStore()
	authz := &fakeAuthorizer{
		surveys: store,
		tokens: map[string]principal{
			adminToken:      {userID: adminID, admin: true, active: true},
			ownerToken:      {userID: ownerID, author: true, active: true},
			otherToken:      {userID: otherID, author: true, active: true},
			respondentToken: {userID: respondentID, active: true},
			expiredToken:    {userID: respondentID, active: false},
		},
	}
	rc := &recordingCache{Cache: cache.NewMemory()}
	rt := cache.NewReadThrough(rc, nil)
	f := &fixture{
		store:   store,
		answers: answers,
		cache:   rc,
		clock:   time.Date(2025, 4, 1, 10, 0, 0, 123456789, time.UTC),
	}
	f.surveys = NewSurveyRepository(store, authz, rt, nil)
	f.responses = NewResponseRepository(answers, authz, rt, nil)
	f.surveys.now = func() time.Time { return f.clock }
	f.responses.now = func() time.Time { return f.clock }
	f.svc = NewSurveyService(f.surveys, f.responses, authz, rt)
	return f
}

func sampleSurvey(n int, published bool) domain.Survey {
	return domain.Survey{
		SurveyNumber: n,
		Title:        fmt.Sprintf("Survey %d", n),
		AuthorID:     ownerID,
		AuthorName:   "Owner",
		Published:    published,
		Questions: []domain.Question{
			{Category: domain.CategoryOpenText, Text: "What do you think?"},
			{Category: domain.CategorySingleChoice, Text: "Pick one", Options: []domain.Option{domain.TextOption("a"), domain.NumberOption(2)}},
		},
	}
}

// gatedSurveyStore blocks the first FindByNumber after it has read the document,
// until release is closed.
type gatedSurveyStore struct {
	*fakeSurveyStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newGatedSurveyStore(inner *fakeSurveyStore) *gatedSurveyStore {
	return &gatedSurveyStore{fakeSurveyStore: inner, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSurveyStore) FindByNumber(ctx context.Context, n int) (*domain.Survey, error) {
	survey, err := g.fakeSurveyStore.FindByNumber(ctx, n)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return survey, err
}
