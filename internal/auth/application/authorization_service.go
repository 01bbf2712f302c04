package application

import (
	"context"
	"strings"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
	"github.com/sngm3741/survey-platform/api/internal/cache"
)

// authorizationService implements AuthorizationService.
type authorizationService struct {
	store   AuthStore
	surveys SurveyOwnership
	cache   *cache.ReadThrough
}

// NewAuthorizationService creates a new AuthorizationService.
func NewAuthorizationService(store AuthStore, surveys SurveyOwnership, rt *cache.ReadThrough) AuthorizationService {
	return &authorizationService{store: store, surveys: surveys, cache: rt}
}

func (s *authorizationService) ResolveRole(ctx context.Context, token string) (domain.Role, error) {
	if blankToken(token) {
		return domain.RoleNone, nil
	}
	role, err := cache.Lookup(ctx, s.cache, cache.TokenRoleKey(token), cache.TokenRolePolicy, func(ctx context.Context) (*domain.Role, error) {
		role, err := s.store.RoleForActiveToken(ctx, token)
		if err != nil {
			return nil, apperror.Unavailable("resolve role", err)
		}
		return &role, nil
	})
	if err != nil {
		return domain.RoleNone, err
	}
	if role == nil {
		return domain.RoleNone, nil
	}
	return *role, nil
}

func (s *authorizationService) IsActive(ctx context.Context, token string) (bool, error) {
	if blankToken(token) {
		return false, nil
	}
	return s.lookupBool(ctx, cache.TokenActiveKey(token), cache.TokenActivePolicy, func(ctx context.Context) (bool, error) {
		active, err := s.store.HasActiveSession(ctx, token)
		if err != nil {
			return false, apperror.Unavailable("check session", err)
		}
		return active, nil
	})
}

func (s *authorizationService) IsAdmin(ctx context.Context, token string) (bool, error) {
	role, err := s.ResolveRole(ctx, token)
	if err != nil {
		return false, err
	}
	return role == domain.RoleAdmin, nil
}

func (s *authorizationService) CanCreateSurveys(ctx context.Context, token string) (bool, error) {
	if blankToken(token) {
		return false, nil
	}
	return s.lookupBool(ctx, cache.TokenPermissionKey(token), cache.TokenPermissionPolicy, func(ctx context.Context) (bool, error) {
		role, err := s.ResolveRole(ctx, token)
		if err != nil {
			return false, err
		}
		return role.CanCreateSurveys(), nil
	})
}

// AuthorOwnsOrIsAdmin returns the identity of authorID when token is one of that user's active sessions.
func (s *authorizationService) AuthorOwnsOrIsAdmin(ctx context.Context, authorID int, token string) (*domain.Identity, error) {
	if blankToken(token) || authorID <= 0 {
		return nil, nil
	}
	return cache.Lookup(ctx, s.cache, cache.TokenUserKey(token, authorID), cache.TokenUserPolicy, func(ctx context.Context) (*domain.Identity, error) {
		identity, err := s.store.ActiveSessionUser(ctx, token, authorID)
		if err != nil {
			return nil, apperror.Unavailable("resolve session user", err)
		}
		return identity, nil
	})
}

// CanModifySurvey: admins always, survey creators only for surveys they authored.
// Ownership is read from the document store, never from the survey cache.
func (s *authorizationService) CanModifySurvey(ctx context.Context, authorID, surveyNumber int, token string) (bool, error) {
	if blankToken(token) || authorID <= 0 {
		return false, nil
	}
	exists, err := s.store.UserExists(ctx, authorID)
	if err != nil {
		return false, apperror.Unavailable("verify author", err)
	}
	if !exists {
		return false, nil
	}

	identity, err := s.AuthorOwnsOrIsAdmin(ctx, authorID, token)
	if err != nil || identity == nil {
		return false, err
	}

	switch identity.Role {
	case domain.RoleAdmin:
		return true, nil
	case domain.RoleSurveyCreator:
		owner, found, err := s.surveys.SurveyAuthor(ctx, surveyNumber)
		if err != nil {
			return false, apperror.Unavailable("read survey owner", err)
		}
		return found && owner == authorID, nil
	default:
		return false, nil
	}
}

func (s *authorizationService) ForgetToken(ctx context.Context, token string) {
	if blankToken(token) {
		return
	}
	s.cache.Invalidate(ctx, cache.TokenRoleKey(token), cache.TokenActiveKey(token), cache.TokenPermissionKey(token))
	s.cache.InvalidatePrefix(ctx, cache.TokenUserPrefix(token))
}

func (s *authorizationService) lookupBool(ctx context.Context, key string, policy cache.Policy, load func(context.Context) (bool, error)) (bool, error) {
	value, err := cache.Lookup(ctx, s.cache, key, policy, func(ctx context.Context) (*bool, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
	if err != nil || value == nil {
		return false, err
	}
	return *value, nil
}

func blankToken(token string) bool {
	return strings.TrimSpace(token) == ""
}
