package sqlstore

import (
	"time"

	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
)

// RoleModel は roles テーブル。users.role_id の参照先として固定 3 行を持つ。
type RoleModel struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"size:50;not null"`
}

func (RoleModel) TableName() string {
	return "roles"
}

// UserModel は users テーブル。パスワードは bcrypt ハッシュのみ保存する。
type UserModel struct {
	ID           int        `gorm:"primaryKey"`
	Name         string     `gorm:"size:100;not null"`
	RoleID       int        `gorm:"not null;index"`
	Email        string     `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string     `gorm:"size:100;not null"`
	BirthDate    *time.Time `gorm:"column:birth_date"`
	Gender       string     `gorm:"size:1"`
	Country      string     `gorm:"size:100"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// SessionModel は sessions テーブル。logged_out_at が NULL の行が有効なセッション。
type SessionModel struct {
	ID          int        `gorm:"primaryKey"`
	UserID      int        `gorm:"not null;index"`
	Token       string     `gorm:"size:512;uniqueIndex;not null"`
	LoggedInAt  time.Time  `gorm:"not null"`
	LoggedOutAt *time.Time `gorm:"index"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

func defaultRoles() []RoleModel {
	roles := []domain.Role{domain.RoleAdmin, domain.RoleSurveyCreator, domain.RoleRespondent}
	models := make([]RoleModel, 0, len(roles))
	for _, r := range roles {
		models = append(models, RoleModel{ID: int(r), Name: r.String()})
	}
	return models
}

func mapUserModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Name:      m.Name,
		Role:      domain.Role(m.RoleID),
		Email:     m.Email,
		BirthDate: m.BirthDate,
		Gender:    m.Gender,
		Country:   m.Country,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
