package user

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Status string

const (
	StatusEnable  Status = "enable"
	StatusDisable Status = "disable"
)

// User is an admin-panel account. Avatar holds a media id; the reference
// is checked by the application, not by a foreign key.
type User struct {
	ID           int64          `gorm:"column:id;primaryKey" json:"id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Email        string         `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Role         Role           `gorm:"column:role;not null;default:user" json:"role"`
	Status       Status         `gorm:"column:status;not null;default:enable" json:"status"`
	Avatar       *string        `gorm:"column:avatar;type:varchar(36);index" json:"avatar"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsEnabled() bool { return u.Status == StatusEnable }
func (u *User) IsTrashed() bool { return u.DeletedAt.Valid }

// Stats are the counters shown on the admin dashboard.
type Stats struct {
	Total    int64 `json:"total"`
	Enabled  int64 `json:"enabled"`
	Disabled int64 `json:"disabled"`
	Admins   int64 `json:"admins"`
	Trashed  int64 `json:"trashed"`
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Search      string
	Status      Status
	Role        Role
	OnlyTrashed bool
}
