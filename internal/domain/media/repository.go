package media

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, m *Media) error
	FindByID(ctx context.Context, id string) (*Media, error)
	// ListByOwner returns newest first; an empty collection matches all.
	ListByOwner(ctx context.Context, ownerID int64, collection string) ([]*Media, error)
	ListByCollection(ctx context.Context, collection string) ([]*Media, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// ReferencedPaths returns every path (main and thumbnail) recorded on disk.
	ReferencedPaths(ctx context.Context, disk string) (map[string]struct{}, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, m *Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Media, error) {
	var m Media
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int64, collection string) ([]*Media, error) {
	q := r.db.WithContext(ctx).Where("uploaded_by = ?", ownerID)
	if collection != "" {
		q = q.Where("collection = ?", collection)
	}
	var items []*Media
	err := q.Order("created_at DESC").Order("id DESC").Find(&items).Error
	return items, err
}

func (r *repository) ListByCollection(ctx context.Context, collection string) ([]*Media, error) {
	var items []*Media
	err := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *repository) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Media{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *repository) ReferencedPaths(ctx context.Context, disk string) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	var batch []*Media
	err := r.db.WithContext(ctx).
		Select("id", "path", "metadata").
		Where("disk = ?", disk).
		FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
			for _, m := range batch {
				paths[m.Path] = struct{}{}
				if thumb := m.ThumbnailPath(); thumb != "" {
					paths[thumb] = struct{}{}
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return paths, nil
}
