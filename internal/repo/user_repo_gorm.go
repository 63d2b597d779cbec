package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"easyrent/internal/core/database"
	"easyrent/internal/domain"
	"easyrent/internal/query"
	"easyrent/pkg/apperrors"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if database.IsDuplicateKey(err) {
		return apperrors.ErrEmailTaken.WithError(err)
	}
	return err
}

func (r *UserRepo) first(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(where, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepo) FindByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.first(ctx, "password_reset_token = ?", tokenHash)
}

func (r *UserRepo) List(ctx context.Context, q *query.Query) ([]domain.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Scopes(query.ApplyFilter(q)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := r.db.WithContext(ctx).Scopes(query.ApplyFilter(q), query.ApplyPage(q)).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Save(u).Error
	if database.IsDuplicateKey(err) {
		return apperrors.ErrEmailTaken.WithError(err)
	}
	return err
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires *time.Time) error {
	var exp any
	if expires != nil {
		exp = expires.UTC()
	}
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_reset_token":   tokenHash,
			"password_reset_expires": exp,
		}).Error
}

func (r *UserRepo) RedeemResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) (bool, error) {
	// 条件更新：令牌仍在库中才生效，保证只能兑换一次
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND password_reset_token = ?", id, tokenHash).
		Updates(map[string]any{
			"password":               passwordHash,
			"password_changed_at":    changedAt.UTC(),
			"password_reset_token":   "",
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
