package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/observability"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	// FindByUsername resolves a local credential with its joined user.
	FindByUsername(username string) (*domain.LocalCredential, *domain.User, error)
	Create(user *domain.User) error
	// RegenerateTokenVersion replaces the user's token version and returns
	// the new value. Every previously issued access token becomes invalid
	// the moment this commits.
	RegenerateTokenVersion(userID uint) (string, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByUsername(username string) (*domain.LocalCredential, *domain.User, error) {
	var cred domain.LocalCredential
	err := r.db.Where("username = ?", username).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "not_found")
			return nil, nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "error")
		return nil, nil, err
	}
	var u domain.User
	if err := r.db.First(&u, cred.UserID).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "error")
		return nil, nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "success")
	return &cred, &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	if user.TokenVersion == "" {
		user.TokenVersion = uuid.NewString()
	}
	err := r.db.Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) RegenerateTokenVersion(userID uint) (string, error) {
	version := uuid.NewString()
	res := r.db.Model(&domain.User{}).Where("id = ?", userID).Update("token_version", version)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "regenerate_token_version", "error")
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "regenerate_token_version", "not_found")
		return "", ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "regenerate_token_version", "success")
	return version, nil
}
