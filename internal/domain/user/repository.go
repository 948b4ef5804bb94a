package user

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetWithTrashed also returns soft-deleted users.
	GetWithTrashed(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f ListFilter) ([]*User, error)
	Save(ctx context.Context, u *User) error
	SetAvatar(ctx context.Context, id int64, mediaID *string) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	ForceDelete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (Stats, error)
	// IsMediaReferenced reports whether any user, trashed or not, uses
	// mediaID as avatar. It guards media deletion.
	IsMediaReferenced(ctx context.Context, mediaID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	u.Email = normalizeEmail(u.Email)
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *repository) GetWithTrashed(ctx context.Context, id int64) (*User, error) {
	return r.first(r.db.WithContext(ctx).Unscoped(), id)
}

func (r *repository) first(q *gorm.DB, id int64) (*User, error) {
	var u User
	err := q.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]*User, error) {
	q := r.db.WithContext(ctx)
	if f.OnlyTrashed {
		q = q.Unscoped().Where("deleted_at IS NOT NULL").Order("deleted_at DESC")
	} else {
		q = q.Order("created_at DESC")
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}

	var users []*User
	err := q.Order("id DESC").Find(&users).Error
	return users, err
}

func (r *repository) Save(ctx context.Context, u *User) error {
	u.Email = normalizeEmail(u.Email)
	if err := r.db.WithContext(ctx).Unscoped().Save(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *repository) SetAvatar(ctx context.Context, id int64, mediaID *string) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("avatar", mediaID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) Restore(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&User{}).Where("id = ?", id).Update("deleted_at", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) ForceDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := r.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		scope func(*gorm.DB) *gorm.DB
	}{
		{&s.Total, func(q *gorm.DB) *gorm.DB { return q }},
		{&s.Enabled, func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", StatusEnable) }},
		{&s.Disabled, func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", StatusDisable) }},
		{&s.Admins, func(q *gorm.DB) *gorm.DB { return q.Where("role = ?", RoleAdmin) }},
		{&s.Trashed, func(q *gorm.DB) *gorm.DB { return q.Unscoped().Where("deleted_at IS NOT NULL") }},
	}
	for _, c := range counts {
		if err := db.Model(&User{}).Scopes(c.scope).Count(c.dst).Error; err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}

func (r *repository) IsMediaReferenced(ctx context.Context, mediaID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().Model(&User{}).Where("avatar = ?", mediaID).Count(&n).Error
	return n > 0, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
