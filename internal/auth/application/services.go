package application

import (
	"context"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
)

// AuthStore は利用者・ログインセッションを保持するリレーショナルストアへのポート。
// 「存在しない」は nil / false で返し、エラーはストア障害に限る。
type AuthStore interface {
	UserExists(ctx context.Context, userID int) (bool, error)
	RoleForActiveToken(ctx context.Context, token string) (domain.Role, error)
	HasActiveSession(ctx context.Context, token string) (bool, error)
	ActiveSessionUser(ctx context.Context, token string, userID int) (*domain.Identity, error)

	CreateUser(ctx context.Context, reg domain.Registration, passwordHash string) (domain.User, error)
	FindCredentials(ctx context.Context, email string) (*domain.Credentials, error)
	OpenSession(ctx context.Context, userID int, token string, at time.Time) error
	CloseSession(ctx context.Context, token string, at time.Time) (bool, error)

	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	FindUser(ctx context.Context, userID int) (*domain.User, error)
	UpdateUser(ctx context.Context, userID int, update domain.UserUpdate) (bool, error)
	DeleteUser(ctx context.Context, userID int) (bool, error)
}

// SurveyOwnership reads a survey's author straight from the document store.
type SurveyOwnership interface {
	SurveyAuthor(ctx context.Context, surveyNumber int) (authorID int, found bool, err error)
}

// AuthorizationService はトークン単位の権限判定をキャッシュ付きで提供する。
type AuthorizationService interface {
	ResolveRole(ctx context.Context, token string) (domain.Role, error)
	IsActive(ctx context.Context, token string) (bool, error)
	IsAdmin(ctx context.Context, token string) (bool, error)
	CanCreateSurveys(ctx context.Context, token string) (bool, error)
	AuthorOwnsOrIsAdmin(ctx context.Context, authorID int, token string) (*domain.Identity, error)
	CanModifySurvey(ctx context.Context, authorID, surveyNumber int, token string) (bool, error)
	// ForgetToken drops every cached decision for token.
	ForgetToken(ctx context.Context, token string)
}

// AccountService handles registration, login and user administration.
type AccountService interface {
	Register(ctx context.Context, token string, reg domain.Registration) (domain.User, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, token string) error

	ListUsers(ctx context.Context, token string) ([]domain.User, error)
	GetUser(ctx context.Context, token string, userID int) (*domain.User, error)
	UpdateUser(ctx context.Context, token string, userID int, update domain.UserUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, token string, userID int) error

	ListRespondents(ctx context.Context, token string) ([]domain.User, error)
	GetRespondent(ctx context.Context, token string, userID int) (*domain.User, error)
	CreateRespondent(ctx context.Context, token string, reg domain.Registration) (domain.User, error)
	UpdateRespondent(ctx context.Context, token string, userID int, update domain.UserUpdate) (*domain.User, error)
	DeleteRespondent(ctx context.Context, token string, userID int) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	UserID    int         `json:"userId"`
	Role      domain.Role `json:"roleId"`
	ExpiresAt time.Time   `json:"expiresAt"`
}
