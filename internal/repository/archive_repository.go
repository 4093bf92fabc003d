package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/observability"
)

// ArchiveRepository backs the folder/file routes.
type ArchiveRepository interface {
	CreateFolder(f *domain.Folder) error
	FindFolderByID(id uint) (*domain.Folder, error)
	ListRootFolders() ([]domain.Folder, error)
	DeleteFolder(id uint) error

	CreateFile(f *domain.File) error
	FindFileByID(id uint) (*domain.File, error)
	DeleteFile(id uint) error
}

type GormArchiveRepository struct{ db *gorm.DB }

func NewArchiveRepository(db *gorm.DB) ArchiveRepository { return &GormArchiveRepository{db: db} }

func (r *GormArchiveRepository) CreateFolder(f *domain.Folder) error {
	return recordOp("archive", "create_folder", r.db.Create(f).Error)
}

func (r *GormArchiveRepository) FindFolderByID(id uint) (*domain.Folder, error) {
	var f domain.Folder
	err := r.db.Preload("Files").First(&f, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "archive", "find_folder", "not_found")
			return nil, ErrNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "archive", "find_folder", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "archive", "find_folder", "success")
	return &f, nil
}

func (r *GormArchiveRepository) ListRootFolders() ([]domain.Folder, error) {
	var folders []domain.Folder
	err := r.db.Where("parent_id IS NULL").Order("name ASC").Find(&folders).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "archive", "list_root_folders", "error")
		return folders, err
	}
	observability.RecordRepositoryOperation(context.Background(), "archive", "list_root_folders", "success")
	return folders, nil
}

func (r *GormArchiveRepository) DeleteFolder(id uint) error {
	res := r.db.Delete(&domain.Folder{}, id)
	if res.Error != nil {
		return recordOp("archive", "delete_folder", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "archive", "delete_folder", "not_found")
		return ErrNotFound
	}
	return recordOp("archive", "delete_folder", nil)
}

func (r *GormArchiveRepository) CreateFile(f *domain.File) error {
	return recordOp("archive", "create_file", r.db.Create(f).Error)
}

func (r *GormArchiveRepository) FindFileByID(id uint) (*domain.File, error) {
	var f domain.File
	err := r.db.First(&f, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "archive", "find_file", "not_found")
			return nil, ErrNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "archive", "find_file", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "archive", "find_file", "success")
	return &f, nil
}

func (r *GormArchiveRepository) DeleteFile(id uint) error {
	res := r.db.Delete(&domain.File{}, id)
	if res.Error != nil {
		return recordOp("archive", "delete_file", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "archive", "delete_file", "not_found")
		return ErrNotFound
	}
	return recordOp("archive", "delete_file", nil)
}
