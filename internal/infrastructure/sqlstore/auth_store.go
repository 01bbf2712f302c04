package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/application"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
)

// AuthStore は利用者とログインセッションを gorm で扱う実装。
type AuthStore struct {
	db *gorm.DB
}

var _ application.AuthStore = (*AuthStore)(nil)

func NewAuthStore(db *gorm.DB) *AuthStore {
	return &AuthStore{db: db}
}

// activeSession は sessions と users を結合し、ログアウトしていないトークンに絞り込む。
func (s *AuthStore) activeSession(ctx context.Context, token string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("sessions").
		Joins("JOIN users ON users.id = sessions.user_id").
		Where("sessions.token = ? AND sessions.logged_out_at IS NULL", token)
}

func (s *AuthStore) UserExists(ctx context.Context, userID int) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, apperror.Unavailable("count users", err)
	}
	return count > 0, nil
}

// RoleForActiveToken はトークンの持ち主のロールを返す。有効なセッションが無ければ RoleNone。
func (s *AuthStore) RoleForActiveToken(ctx context.Context, token string) (domain.Role, error) {
	var roles []int
	if err := s.activeSession(ctx, token).Limit(1).Pluck("users.role_id", &roles).Error; err != nil {
		return domain.RoleNone, apperror.Unavailable("resolve role", err)
	}
	if len(roles) == 0 {
		return domain.RoleNone, nil
	}
	return domain.Role(roles[0]), nil
}

func (s *AuthStore) HasActiveSession(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&SessionModel{}).
		Where("token = ? AND logged_out_at IS NULL", token).
		Count(&count).Error
	if err != nil {
		return false, apperror.Unavailable("check session", err)
	}
	return count > 0, nil
}

// ActiveSessionUser はトークンが userID 本人の有効なセッションであれば、その利用者を返す。
func (s *AuthStore) ActiveSessionUser(ctx context.Context, token string, userID int) (*domain.Identity, error) {
	var rows []struct {
		UserID int
		RoleID int
	}
	err := s.activeSession(ctx, token).
		Select("users.id AS user_id, users.role_id AS role_id").
		Where("users.id = ?", userID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.Unavailable("resolve session user", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.Identity{UserID: rows[0].UserID, Role: domain.Role(rows[0].RoleID)}, nil
}

// CreateUser は利用者を登録する。メールアドレスの重複は Conflict。
func (s *AuthStore) CreateUser(ctx context.Context, reg domain.Registration, passwordHash string) (domain.User, error) {
	model := UserModel{
		Name:         reg.Name,
		RoleID:       int(reg.Role),
		Email:        reg.Email,
		PasswordHash: passwordHash,
		BirthDate:    reg.BirthDate,
		Gender:       reg.Gender,
		Country:      reg.Country,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, apperror.Conflict("email %s is already registered", reg.Email)
		}
		return domain.User{}, apperror.Unavailable("create user", err)
	}
	return mapUserModel(model), nil
}

func (s *AuthStore) FindCredentials(ctx context.Context, email string) (*domain.Credentials, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Unavailable("find credentials", err)
	}
	return &domain.Credentials{UserID: model.ID, Role: domain.Role(model.RoleID), PasswordHash: model.PasswordHash}, nil
}

func (s *AuthStore) OpenSession(ctx context.Context, userID int, token string, at time.Time) error {
	session := SessionModel{UserID: userID, Token: token, LoggedInAt: at}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return apperror.Unavailable("open session", err)
	}
	return nil
}

// CloseSession は有効なセッションにログアウト時刻を記録する。該当が無ければ false。
func (s *AuthStore) CloseSession(ctx context.Context, token string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&SessionModel{}).
		Where("token = ? AND logged_out_at IS NULL", token).
		Update("logged_out_at", at)
	if result.Error != nil {
		return false, apperror.Unavailable("close session", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListUsers は role の利用者を ID 順で返す。RoleNone なら全員。
func (s *AuthStore) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := s.db.WithContext(ctx).Order("id")
	if role != domain.RoleNone {
		query = query.Where("role_id = ?", int(role))
	}
	var models []UserModel
	if err := query.Find(&models).Error; err != nil {
		return nil, apperror.Unavailable("list users", err)
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, mapUserModel(m))
	}
	return users, nil
}

func (s *AuthStore) FindUser(ctx context.Context, userID int) (*domain.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Unavailable("find user", err)
	}
	user := mapUserModel(model)
	return &user, nil
}

// UpdateUser は指定されたフィールドだけを書き換える。利用者がいなければ false。
func (s *AuthStore) UpdateUser(ctx context.Context, userID int, update domain.UserUpdate) (bool, error) {
	changes := map[string]any{}
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.Email != nil {
		changes["email"] = *update.Email
	}
	if update.Role != nil {
		changes["role_id"] = int(*update.Role)
	}
	if update.BirthDate != nil {
		changes["birth_date"] = *update.BirthDate
	}
	if update.Gender != nil {
		changes["gender"] = *update.Gender
	}
	if update.Country != nil {
		changes["country"] = *update.Country
	}

	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.Select("id").First(&model, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		return tx.Model(&model).Updates(changes).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, apperror.Conflict("email is already registered")
		}
		return false, apperror.Unavailable("update user", err)
	}
	return found, nil
}

// DeleteUser は利用者とそのセッション履歴を削除する。
func (s *AuthStore) DeleteUser(ctx context.Context, userID int) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&SessionModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&UserModel{}, userID)
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, apperror.Unavailable("delete user", err)
	}
	return deleted, nil
}
