package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"easyrent/internal/domain"
	"easyrent/internal/query"
)

type ListingRepo struct{ db *gorm.DB }

func NewListingRepo(db *gorm.DB) *ListingRepo { return &ListingRepo{db: db} }

var _ domain.ListingRepository = (*ListingRepo)(nil)

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *ListingRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepo) List(ctx context.Context, q *query.Query) ([]domain.Listing, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Listing{}).Scopes(query.ApplyFilter(q)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Listing
	if err := r.db.WithContext(ctx).Scopes(query.ApplyFilter(q), query.ApplyPage(q)).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ListingRepo) Update(ctx context.Context, l *domain.Listing) error {
	return r.db.WithContext(ctx).Save(l).Error
}

// AutoMigrate 建表（users / listings）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.Listing{})
}
