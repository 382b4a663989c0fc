package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/d60-Lab/supportdesk/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	SetBanned(ctx context.Context, id string, banned bool) error
}

type userRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepository) SetAdmin(ctx context.Context, id string, admin bool) error {
	return r.setFlag(ctx, id, "is_admin", admin)
}

func (r *userRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return r.setFlag(ctx, id, "is_banned", banned)
}

func (r *userRepository) setFlag(ctx context.Context, id, column string, value bool) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) first(q *gorm.DB) (*model.User, error) {
	var u model.User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
