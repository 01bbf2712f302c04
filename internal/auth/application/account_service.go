package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
	"github.com/sngm3741/survey-platform/api/internal/cache"
)

// accountService implements AccountService.
type accountService struct {
	store    AuthStore
	authz    AuthorizationService
	tokens   *TokenIssuer
	cache    *cache.ReadThrough
	logger   *zap.Logger
	now      func() time.Time
	hashCost int
}

// NewAccountService creates a new AccountService.
func NewAccountService(store AuthStore, authz AuthorizationService, tokens *TokenIssuer, rt *cache.ReadThrough, logger *zap.Logger) AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &accountService{
		store:    store,
		authz:    authz,
		tokens:   tokens,
		cache:    rt,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates an account. Creating an administrator requires an administrator token.
func (s *accountService) Register(ctx context.Context, token string, reg domain.Registration) (domain.User, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Name = strings.TrimSpace(reg.Name)
	if err := reg.Validate(); err != nil {
		return domain.User{}, err
	}
	if reg.Role == domain.RoleAdmin {
		if err := s.requireAdmin(ctx, token); err != nil {
			return domain.User{}, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.store.CreateUser(ctx, reg, string(hash))
	if err != nil {
		return domain.User{}, err
	}
	s.cache.Invalidate(ctx, cache.AllUsersKey, cache.RespondentsKey)
	s.logger.Info("利用者を登録しました", zap.Int("userId", user.ID), zap.Stringer("role", user.Role))
	return user, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperror.InvalidArgument("email and password are required")
	}
	creds, err := s.store.FindCredentials(ctx, email)
	if err != nil {
		return Session{}, apperror.Unavailable("find credentials", err)
	}
	if creds == nil {
		return Session{}, apperror.PermissionDenied("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, apperror.PermissionDenied("invalid credentials")
		}
		return Session{}, err
	}

	token, expiresAt, err := s.tokens.Issue(creds.UserID, int(creds.Role))
	if err != nil {
		return Session{}, err
	}
	if err := s.store.OpenSession(ctx, creds.UserID, token, s.now()); err != nil {
		return Session{}, apperror.Unavailable("open session", err)
	}
	return Session{Token: token, UserID: creds.UserID, Role: creds.Role, ExpiresAt: expiresAt}, nil
}

// Logout closes the session and drops every cached decision for the token.
func (s *accountService) Logout(ctx context.Context, token string) error {
	if blankToken(token) {
		return apperror.InvalidArgument("token is required")
	}
	closed, err := s.store.CloseSession(ctx, token, s.now())
	if err != nil {
		return apperror.Unavailable("close session", err)
	}
	s.authz.ForgetToken(ctx, token)
	if !closed {
		return apperror.NotFound("no active session for token")
	}
	return nil
}

func (s *accountService) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	if err := s.requireAdmin(ctx, token); err != nil {
		return nil, err
	}
	return s.listByRole(ctx, cache.AllUsersKey, domain.RoleNone)
}

func (s *accountService) GetUser(ctx context.Context, token string, userID int) (*domain.User, error) {
	if err := s.requireAdmin(ctx, token); err != nil {
		return nil, err
	}
	return s.findUser(ctx, userID)
}

func (s *accountService) UpdateUser(ctx context.Context, token string, userID int, update domain.UserUpdate) (*domain.User, error) {
	if err := s.requireAdmin(ctx, token); err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, userID, update)
}

func (s *accountService) DeleteUser(ctx context.Context, token string, userID int) error {
	if err := s.requireAdmin(ctx, token); err != nil {
		return err
	}
	return s.removeUser(ctx, userID)
}

func (s *accountService) ListRespondents(ctx context.Context, token string) ([]domain.User, error) {
	if err := s.requireCreator(ctx, token); err != nil {
		return nil, err
	}
	return s.listByRole(ctx, cache.RespondentsKey, domain.RoleRespondent)
}

func (s *accountService) GetRespondent(ctx context.Context, token string, userID int) (*domain.User, error) {
	if err := s.requireCreator(ctx, token); err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleRespondent {
		return nil, apperror.NotFound("respondent %d", userID)
	}
	return user, nil
}

// CreateRespondent registers a respondent on behalf of a survey creator. The role in reg is ignored.
func (s *accountService) CreateRespondent(ctx context.Context, token string, reg domain.Registration) (domain.User, error) {
	if err := s.requireCreator(ctx, token); err != nil {
		return domain.User{}, err
	}
	reg.Role = domain.RoleRespondent
	return s.Register(ctx, "", reg)
}

// UpdateRespondent edits a respondent's profile. Respondents cannot be moved to another role here.
func (s *accountService) UpdateRespondent(ctx context.Context, token string, userID int, update domain.UserUpdate) (*domain.User, error) {
	if err := s.requireCreator(ctx, token); err != nil {
		return nil, err
	}
	if update.Role != nil && *update.Role != domain.RoleRespondent {
		return nil, apperror.PermissionDenied("respondent role cannot be changed")
	}
	if err := s.requireRespondent(ctx, userID); err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, userID, update)
}

func (s *accountService) DeleteRespondent(ctx context.Context, token string, userID int) error {
	if err := s.requireCreator(ctx, token); err != nil {
		return err
	}
	if err := s.requireRespondent(ctx, userID); err != nil {
		return err
	}
	return s.removeUser(ctx, userID)
}

func (s *accountService) applyUpdate(ctx context.Context, userID int, update domain.UserUpdate) (*domain.User, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if update.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*update.Email))
		update.Email = &normalized
	}
	ok, err := s.store.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("user %d", userID)
	}
	s.forgetUser(ctx, userID)
	return s.findUser(ctx, userID)
}

func (s *accountService) removeUser(ctx context.Context, userID int) error {
	ok, err := s.store.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("user %d", userID)
	}
	s.forgetUser(ctx, userID)
	return nil
}

// requireRespondent checks the target role against the store, bypassing the cache.
func (s *accountService) requireRespondent(ctx context.Context, userID int) error {
	if userID <= 0 {
		return apperror.InvalidArgument("user id must be positive")
	}
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return apperror.Unavailable("find user", err)
	}
	if user == nil || user.Role != domain.RoleRespondent {
		return apperror.NotFound("respondent %d", userID)
	}
	return nil
}

func (s *accountService) listByRole(ctx context.Context, key string, role domain.Role) ([]domain.User, error) {
	users, err := cache.Lookup(ctx, s.cache, key, cache.UserPolicy, func(ctx context.Context) (*[]domain.User, error) {
		users, err := s.store.ListUsers(ctx, role)
		if err != nil {
			return nil, apperror.Unavailable("list users", err)
		}
		if users == nil {
			users = []domain.User{}
		}
		return &users, nil
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		return []domain.User{}, nil
	}
	return *users, nil
}

func (s *accountService) findUser(ctx context.Context, userID int) (*domain.User, error) {
	if userID <= 0 {
		return nil, apperror.InvalidArgument("user id must be positive")
	}
	user, err := cache.Lookup(ctx, s.cache, cache.UserKey(userID), cache.UserPolicy, func(ctx context.Context) (*domain.User, error) {
		user, err := s.store.FindUser(ctx, userID)
		if err != nil {
			return nil, apperror.Unavailable("find user", err)
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("user %d", userID)
	}
	return user, nil
}

func (s *accountService) forgetUser(ctx context.Context, userID int) {
	s.cache.Invalidate(ctx, cache.UserKey(userID), cache.AllUsersKey, cache.RespondentsKey)
}

func (s *accountService) requireAdmin(ctx context.Context, token string) error {
	ok, err := s.authz.IsAdmin(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.PermissionDenied("administrator role required")
	}
	return nil
}

func (s *accountService) requireCreator(ctx context.Context, token string) error {
	ok, err := s.authz.CanCreateSurveys(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.PermissionDenied("survey creator role required")
	}
	return nil
}
