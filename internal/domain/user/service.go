package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"adminpanel/internal/domain/media"
)

const minPasswordLength = 8

// MediaService is the part of the media pipeline users depend on.
type MediaService interface {
	Find(ctx context.Context, id string) (*media.Media, error)
	Replace(ctx context.Context, file media.File, ownerID int64, previous *media.Media, opts media.UploadOptions, associate func(context.Context, *media.Media) error) (*media.Media, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	URL(ctx context.Context, m *media.Media, opts media.URLOptions) (string, error)
	ThumbnailURL(ctx context.Context, m *media.Media, opts media.URLOptions) (string, error)
}

type Service struct {
	repo       Repository
	media      MediaService
	logger     *zap.Logger
	bcryptCost int
}

func NewService(repo Repository, mediaService MediaService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		media:      mediaService,
		logger:     logger.Named("user"),
		bcryptCost: bcrypt.DefaultCost,
	}
}

type CreateInput struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     Role   `json:"role" binding:"omitempty,oneof=admin user"`
	Status   Status `json:"status" binding:"omitempty,oneof=enable disable"`
}

// UpdateInput is a partial update; nil fields are left alone and a blank
// password keeps the current one.
type UpdateInput struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Password *string `json:"password" binding:"omitempty,max=72"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=admin user"`
	Status   *Status `json:"status" binding:"omitempty,oneof=enable disable"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	if in.Role == "" {
		in.Role = RoleUser
	}
	if in.Status == "" {
		in.Status = StatusEnable
	}
	if err := validateRoleStatus(in.Role, in.Status); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       in.Status,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetWithTrashed(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, f)
}

// Update applies in to the user, trashed users included.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	u, err := s.repo.GetWithTrashed(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Role != nil {
		if err := validateRoleStatus(*in.Role, u.Status); err != nil {
			return nil, err
		}
		u.Role = *in.Role
	}
	if in.Status != nil {
		if err := validateRoleStatus(u.Role, *in.Status); err != nil {
			return nil, err
		}
		u.Status = *in.Status
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete soft-deletes a user. The avatar media is kept so Restore can
// bring the account back intact.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfAction
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) Restore(ctx context.Context, id int64) (*User, error) {
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ForceDelete removes the user row for good and then deletes the avatar
// media. A failed media delete is logged; the sweep picks up leftovers.
func (s *Service) ForceDelete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfAction
	}
	u, err := s.repo.GetWithTrashed(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.ForceDelete(ctx, id); err != nil {
		return err
	}
	if u.Avatar != nil {
		if _, err := s.media.DeleteByID(ctx, *u.Avatar); err != nil {
			s.logger.Warn("failed to delete avatar of removed user",
				zap.Int64("user_id", id), zap.String("media_id", *u.Avatar), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) ToggleStatus(ctx context.Context, actorID, id int64) (*User, error) {
	if actorID == id {
		return nil, ErrSelfAction
	}
	u, err := s.repo.GetWithTrashed(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status == StatusEnable {
		u.Status = StatusDisable
	} else {
		u.Status = StatusEnable
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// UpdateAvatar uploads file with the avatar preset, points the user at
// the new media and removes the previous avatar.
func (s *Service) UpdateAvatar(ctx context.Context, userID int64, file media.File) (*User, *media.Media, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var previous *media.Media
	if u.Avatar != nil {
		previous, err = s.media.Find(ctx, *u.Avatar)
		if err != nil && !errors.Is(err, media.ErrMediaNotFound) {
			return nil, nil, err
		}
	}

	m, err := s.media.Replace(ctx, file, userID, previous, media.AvatarUploadOptions(),
		func(ctx context.Context, m *media.Media) error {
			return s.repo.SetAvatar(ctx, userID, &m.ID)
		})
	if err != nil {
		return nil, nil, err
	}
	u.Avatar = &m.ID
	return u, m, nil
}

// AvatarURLs returns the avatar and thumbnail URLs, or empty strings when
// the user has no avatar.
func (s *Service) AvatarURLs(ctx context.Context, u *User) (string, string, error) {
	if u.Avatar == nil {
		return "", "", nil
	}
	m, err := s.media.Find(ctx, *u.Avatar)
	if errors.Is(err, media.ErrMediaNotFound) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	url, err := s.media.URL(ctx, m, media.URLOptions{})
	if err != nil {
		return "", "", err
	}
	thumb, err := s.media.ThumbnailURL(ctx, m, media.URLOptions{})
	if err != nil {
		return "", "", err
	}
	return url, thumb, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooWeak
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func validateRoleStatus(role Role, status Status) error {
	if role != RoleAdmin && role != RoleUser {
		return ErrInvalidRole
	}
	if status != StatusEnable && status != StatusDisable {
		return ErrInvalidStatus
	}
	return nil
}

func validateFilter(f ListFilter) error {
	if f.Role != "" && f.Role != RoleAdmin && f.Role != RoleUser {
		return ErrInvalidRole
	}
	if f.Status != "" && f.Status != StatusEnable && f.Status != StatusDisable {
		return ErrInvalidStatus
	}
	return nil
}
