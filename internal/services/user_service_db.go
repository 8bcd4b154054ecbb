package services

import (
	"context"
	"errors"

	"appraisal_go_backend/internal/models"

	"gorm.io/gorm"
)

type DefaultUserServiceDB struct {
	db *gorm.DB
}

func NewUserServiceDB(db *gorm.DB) UserStore {
	return &DefaultUserServiceDB{db: db}
}

func (s *DefaultUserServiceDB) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}

func (s *DefaultUserServiceDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !models.IsValidID(id) {
		return nil, ErrUserNotFound
	}
	return s.first(ctx, "id = ?", id)
}

func (s *DefaultUserServiceDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *DefaultUserServiceDB) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

func (s *DefaultUserServiceDB) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *DefaultUserServiceDB) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *DefaultUserServiceDB) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
