package user

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("this email address is already registered")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
	ErrSelfAction      = errors.New("you cannot perform this action on your own account")
)
