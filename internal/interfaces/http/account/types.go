package account

import (
	"strings"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
)

const birthDateLayout = "2006-01-02"

type registerRequest struct {
	Name      string `json:"name"`
	RoleID    int    `json:"roleId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
	Country   string `json:"country"`
}

func (req registerRequest) toRegistration() (domain.Registration, error) {
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return domain.Registration{}, err
	}
	return domain.Registration{
		Name:      req.Name,
		Role:      domain.Role(req.RoleID),
		Email:     req.Email,
		Password:  req.Password,
		BirthDate: birthDate,
		Gender:    req.Gender,
		Country:   req.Country,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userUpdateRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	RoleID    *int    `json:"roleId"`
	BirthDate *string `json:"birthDate"`
	Gender    *string `json:"gender"`
	Country   *string `json:"country"`
}

func (req userUpdateRequest) toUpdate() (domain.UserUpdate, error) {
	update := domain.UserUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Gender:  req.Gender,
		Country: req.Country,
	}
	if req.RoleID != nil {
		role := domain.Role(*req.RoleID)
		update.Role = &role
	}
	if req.BirthDate != nil {
		birthDate, err := parseBirthDate(*req.BirthDate)
		if err != nil {
			return domain.UserUpdate{}, err
		}
		update.BirthDate = birthDate
	}
	return update, nil
}

func parseBirthDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(birthDateLayout, raw)
	if err != nil {
		return nil, apperror.InvalidArgument("birthDate must be YYYY-MM-DD")
	}
	return &t, nil
}
