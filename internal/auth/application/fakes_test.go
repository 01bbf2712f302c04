package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
	"github.com/sngm3741/survey-platform/api/internal/cache"
)

var errStoreDown = errors.New("mysql: connection refused")

type fakeUser struct {
	user domain.User
	hash string
}

type fakeSession struct {
	userID   int
	loggedIn time.Time
	closed   bool
}

type fakeAuthStore struct {
	mu       sync.Mutex
	users    map[int]*fakeUser
	sessions map[string]*fakeSession
	nextID   int
	down     bool
	calls    map[string]int
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:    make(map[int]*fakeUser),
		sessions: make(map[string]*fakeSession),
		nextID:   1,
		calls:    make(map[string]int),
	}
}

// addUser registers a user with an active session under token.
func (s *fakeAuthStore) addUser(role domain.Role, token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.users[id] = &fakeUser{user: domain.User{ID: id, Name: role.String(), Role: role, Email: role.String() + "@example.com"}}
	if token != "" {
		s.sessions[token] = &fakeSession{userID: id}
	}
	return id
}

func (s *fakeAuthStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *fakeAuthStore) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *fakeAuthStore) enter(name string) error {
	s.calls[name]++
	if s.down {
		return errStoreDown
	}
	return nil
}

func (s *fakeAuthStore) active(token string) *fakeSession {
	sess, ok := s.sessions[token]
	if !ok || sess.closed {
		return nil
	}
	return sess
}

func (s *fakeAuthStore) UserExists(_ context.Context, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UserExists"); err != nil {
		return false, err
	}
	_, ok := s.users[userID]
	return ok, nil
}

func (s *fakeAuthStore) RoleForActiveToken(_ context.Context, token string) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RoleForActiveToken"); err != nil {
		return domain.RoleNone, err
	}
	sess := s.active(token)
	if sess == nil {
		return domain.RoleNone, nil
	}
	if u, ok := s.users[sess.userID]; ok {
		return u.user.Role, nil
	}
	return domain.RoleNone, nil
}

func (s *fakeAuthStore) HasActiveSession(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("HasActiveSession"); err != nil {
		return false, err
	}
	return s.active(token) != nil, nil
}

func (s *fakeAuthStore) ActiveSessionUser(_ context.Context, token string, userID int) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ActiveSessionUser"); err != nil {
		return nil, err
	}
	sess := s.active(token)
	if sess == nil || sess.userID != userID {
		return nil, nil
	}
	return &domain.Identity{UserID: userID, Role: s.users[userID].user.Role}, nil
}

func (s *fakeAuthStore) CreateUser(_ context.Context, reg domain.Registration, hash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateUser"); err != nil {
		return domain.User{}, err
	}
	for _, u := range s.users {
		if u.user.Email == reg.Email {
			return domain.User{}, apperror.Conflict("email %s already registered", reg.Email)
		}
	}
	id := s.nextID
	s.nextID++
	user := domain.User{ID: id, Name: reg.Name, Role: reg.Role, Email: reg.Email, Gender: reg.Gender, Country: reg.Country}
	s.users[id] = &fakeUser{user: user, hash: hash}
	return user, nil
}

func (s *fakeAuthStore) FindCredentials(_ context.Context, email string) (*domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCredentials"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.user.Email == email {
			return &domain.Credentials{UserID: u.user.ID, Role: u.user.Role, PasswordHash: u.hash}, nil
		}
	}
	return nil, nil
}

func (s *fakeAuthStore) OpenSession(_ context.Context, userID int, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("OpenSession"); err != nil {
		return err
	}
	s.sessions[token] = &fakeSession{userID: userID, loggedIn: at}
	return nil
}

func (s *fakeAuthStore) CloseSession(_ context.Context, token string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CloseSession"); err != nil {
		return false, err
	}
	sess := s.active(token)
	if sess == nil {
		return false, nil
	}
	sess.closed = true
	return true, nil
}

func (s *fakeAuthStore) ListUsers(_ context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListUsers"); err != nil {
		return nil, err
	}
	var users []domain.User
	for _, u := range s.users {
		if role == domain.RoleNone || u.user.Role == role {
			users = append(users, u.user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *fakeAuthStore) FindUser(_ context.Context, userID int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	user := u.user
	return &user, nil
}

func (s *fakeAuthStore) UpdateUser(_ context.Context, userID int, update domain.UserUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateUser"); err != nil {
		return false, err
	}
	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	if update.Name != nil {
		u.user.Name = *update.Name
	}
	if update.Email != nil {
		u.user.Email = *update.Email
	}
	if update.Role != nil {
		u.user.Role = *update.Role
	}
	return true, nil
}

func (s *fakeAuthStore) DeleteUser(_ context.Context, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteUser"); err != nil {
		return false, err
	}
	if _, ok := s.users[userID]; !ok {
		return false, nil
	}
	delete(s.users, userID)
	return true, nil
}

type fakeOwnership struct {
	mu      sync.Mutex
	authors map[int]int
	calls   int
}

func (o *fakeOwnership) SurveyAuthor(_ context.Context, surveyNumber int) (int, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	author, ok := o.authors[surveyNumber]
	return author, ok, nil
}

// countingCache counts writes so tests can assert nothing was cached.
type countingCache struct {
	*cache.Memory
	mu   sync.Mutex
	sets int
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Memory.Set(ctx, key, value, ttl)
}

func (c *countingCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func newTestAuthorization(store AuthStore, owners SurveyOwnership) (AuthorizationService, *countingCache) {
	mem := &countingCache{Memory: cache.NewMemory()}
	return NewAuthorizationService(store, owners, cache.NewReadThrough(mem, nil)), mem
}
