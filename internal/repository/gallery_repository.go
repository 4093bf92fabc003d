package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/observability"
)

var ErrNotFound = errors.New("record not found")

type PainterListQuery struct {
	PageRequest
	Name string
}

// GalleryRepository is the thin CRUD layer behind the painter/painting/
// technique routes. No invariants beyond field mapping live here.
type GalleryRepository interface {
	CreatePainter(p *domain.Painter) error
	FindPainterByID(id uint) (*domain.Painter, error)
	ListPainters(query PainterListQuery) (PageResult[domain.Painter], error)
	UpdatePainter(p *domain.Painter) error
	DeletePainter(id uint) error

	CreatePainting(p *domain.Painting) error
	FindPaintingByID(id uint) (*domain.Painting, error)
	ListPaintingsByPainter(painterID uint) ([]domain.Painting, error)
	UpdatePainting(p *domain.Painting) error
	DeletePainting(id uint) error

	CreateTechnique(t *domain.Technique) error
	ListTechniques() ([]domain.Technique, error)
	DeleteTechnique(id uint) error
}

type GormGalleryRepository struct{ db *gorm.DB }

func NewGalleryRepository(db *gorm.DB) GalleryRepository { return &GormGalleryRepository{db: db} }

func (r *GormGalleryRepository) CreatePainter(p *domain.Painter) error {
	return recordOp("gallery", "create_painter", r.db.Create(p).Error)
}

func (r *GormGalleryRepository) FindPainterByID(id uint) (*domain.Painter, error) {
	var p domain.Painter
	err := r.db.Preload("Paintings.Techniques").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painter", "not_found")
			return nil, ErrNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painter", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painter", "success")
	return &p, nil
}

func (r *GormGalleryRepository) ListPainters(query PainterListQuery) (PageResult[domain.Painter], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.Painter]{Page: req.Page, PageSize: req.PageSize}

	base := r.db.Model(&domain.Painter{})
	if query.Name != "" {
		base = base.Where("name LIKE ?", query.Name+"%")
	}
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "list_painters", "error")
		return PageResult[domain.Painter]{}, err
	}
	offset := (req.Page - 1) * req.PageSize
	if err := base.Order("name ASC").Offset(offset).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "list_painters", "error")
		return PageResult[domain.Painter]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "gallery", "list_painters", "success")
	return result, nil
}

func (r *GormGalleryRepository) UpdatePainter(p *domain.Painter) error {
	return recordOp("gallery", "update_painter", r.db.Save(p).Error)
}

func (r *GormGalleryRepository) DeletePainter(id uint) error {
	res := r.db.Delete(&domain.Painter{}, id)
	if res.Error != nil {
		return recordOp("gallery", "delete_painter", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "delete_painter", "not_found")
		return ErrNotFound
	}
	return recordOp("gallery", "delete_painter", nil)
}

func (r *GormGalleryRepository) CreatePainting(p *domain.Painting) error {
	return recordOp("gallery", "create_painting", r.db.Create(p).Error)
}

func (r *GormGalleryRepository) FindPaintingByID(id uint) (*domain.Painting, error) {
	var p domain.Painting
	err := r.db.Preload("Techniques").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painting", "not_found")
			return nil, ErrNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painting", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "gallery", "find_painting", "success")
	return &p, nil
}

func (r *GormGalleryRepository) ListPaintingsByPainter(painterID uint) ([]domain.Painting, error) {
	var paintings []domain.Painting
	err := r.db.Preload("Techniques").Where("painter_id = ?", painterID).Order("year ASC").Find(&paintings).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "list_paintings", "error")
		return paintings, err
	}
	observability.RecordRepositoryOperation(context.Background(), "gallery", "list_paintings", "success")
	return paintings, nil
}

func (r *GormGalleryRepository) UpdatePainting(p *domain.Painting) error {
	return recordOp("gallery", "update_painting", r.db.Save(p).Error)
}

func (r *GormGalleryRepository) DeletePainting(id uint) error {
	res := r.db.Delete(&domain.Painting{}, id)
	if res.Error != nil {
		return recordOp("gallery", "delete_painting", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "delete_painting", "not_found")
		return ErrNotFound
	}
	return recordOp("gallery", "delete_painting", nil)
}

func (r *GormGalleryRepository) CreateTechnique(t *domain.Technique) error {
	return recordOp("gallery", "create_technique", r.db.Create(t).Error)
}

func (r *GormGalleryRepository) ListTechniques() ([]domain.Technique, error) {
	var techniques []domain.Technique
	err := r.db.Order("name ASC").Find(&techniques).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "list_techniques", "error")
		return techniques, err
	}
	observability.RecordRepositoryOperation(context.Background(), "gallery", "list_techniques", "success")
	return techniques, nil
}

func (r *GormGalleryRepository) DeleteTechnique(id uint) error {
	res := r.db.Delete(&domain.Technique{}, id)
	if res.Error != nil {
		return recordOp("gallery", "delete_technique", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "gallery", "delete_technique", "not_found")
		return ErrNotFound
	}
	return recordOp("gallery", "delete_technique", nil)
}

func recordOp(entity, op string, err error) error {
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), entity, op, "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), entity, op, "success")
	return nil
}
