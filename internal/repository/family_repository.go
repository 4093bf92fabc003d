package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/observability"
)

var ErrFamilyNotFound = errors.New("token family not found")

// FamilyRepository persists refresh-token families. DeleteIfExists is the
// linearization point for rotation: concurrent refreshes racing on the same
// family hit a single conditional DELETE, so exactly one observes true.
type FamilyRepository interface {
	Create(f *domain.TokenFamily) error
	Exists(userID uint, familyID string) (bool, error)
	DeleteIfExists(userID uint, familyID string) (bool, error)
	ListActiveByUserID(userID uint) ([]domain.TokenFamily, error)
	DeleteAllForUser(userID uint) (int64, error)
	CleanupExpired() (int64, error)
}

type GormFamilyRepository struct{ db *gorm.DB }

func NewFamilyRepository(db *gorm.DB) FamilyRepository { return &GormFamilyRepository{db: db} }

func (r *GormFamilyRepository) Create(f *domain.TokenFamily) error {
	err := r.db.Create(f).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "create", "success")
	return nil
}

func (r *GormFamilyRepository) Exists(userID uint, familyID string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.TokenFamily{}).
		Where("user_id = ? AND family_id = ? AND expires_at > ?", userID, familyID, time.Now()).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "exists", "success")
	return count > 0, nil
}

func (r *GormFamilyRepository) DeleteIfExists(userID uint, familyID string) (bool, error) {
	res := r.db.Where("user_id = ? AND family_id = ? AND expires_at > ?", userID, familyID, time.Now()).
		Delete(&domain.TokenFamily{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "delete_if_exists", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "family", "delete_if_exists", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "delete_if_exists", "success")
	return true, nil
}

func (r *GormFamilyRepository) ListActiveByUserID(userID uint) ([]domain.TokenFamily, error) {
	var families []domain.TokenFamily
	err := r.db.Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").
		Find(&families).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "list_active_by_user_id", "error")
		return families, err
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "list_active_by_user_id", "success")
	return families, nil
}

func (r *GormFamilyRepository) DeleteAllForUser(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&domain.TokenFamily{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "delete_all_for_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "delete_all_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormFamilyRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.TokenFamily{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "family", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "family", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
