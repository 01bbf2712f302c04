package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
)

// Role is the capability level attached to a user. RoleNone means no active session.
type Role int

const (
	RoleNone          Role = 0
	RoleAdmin         Role = 1
	RoleSurveyCreator Role = 2
	RoleRespondent    Role = 3
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSurveyCreator || r == RoleRespondent
}

// CanCreateSurveys reports whether the role may author surveys.
func (r Role) CanCreateSurveys() bool {
	return r == RoleAdmin || r == RoleSurveyCreator
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSurveyCreator:
		return "survey_creator"
	case RoleRespondent:
		return "respondent"
	default:
		return "none"
	}
}

// Identity is the user bound to an active session.
type Identity struct {
	UserID int  `json:"userId"`
	Role   Role `json:"roleId"`
}

// User is an account as exposed to callers. The password hash never leaves the store layer.
type User struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Role      Role       `json:"roleId"`
	Email     string     `json:"email"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	Country   string     `json:"country,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Registration is the input for creating an account.
type Registration struct {
	Name      string
	Role      Role
	Email     string
	Password  string
	BirthDate *time.Time
	Gender    string
	Country   string
}

const minPasswordLength = 8

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperror.InvalidArgument("name is required")
	}
	if !r.Role.Valid() {
		return apperror.InvalidArgument("unknown role %d", int(r.Role))
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
		return apperror.InvalidArgument("email is invalid")
	}
	if len(r.Password) < minPasswordLength {
		return apperror.InvalidArgument("password must be at least %d characters", minPasswordLength)
	}
	if r.Gender != "" && r.Gender != "M" && r.Gender != "F" && r.Gender != "O" {
		return apperror.InvalidArgument("gender must be M, F or O")
	}
	return nil
}

// UserUpdate lists the mutable profile fields. Nil fields are left untouched.
type UserUpdate struct {
	Name      *string    `json:"name,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Role      *Role      `json:"roleId,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Gender    *string    `json:"gender,omitempty"`
	Country   *string    `json:"country,omitempty"`
}

func (u UserUpdate) Validate() error {
	if u.Name == nil && u.Email == nil && u.Role == nil && u.BirthDate == nil && u.Gender == nil && u.Country == nil {
		return apperror.InvalidArgument("update has no fields")
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return apperror.InvalidArgument("name must not be empty")
	}
	if u.Email != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*u.Email)); err != nil {
			return apperror.InvalidArgument("email is invalid")
		}
	}
	if u.Role != nil && !u.Role.Valid() {
		return apperror.InvalidArgument("unknown role %d", int(*u.Role))
	}
	return nil
}

// Credentials is what the store returns for a login attempt.
type Credentials struct {
	UserID       int
	Role         Role
	PasswordHash string
}
